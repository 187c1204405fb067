package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opendlt/aptos-toolkit/client"
	"github.com/opendlt/aptos-toolkit/contract"
	"github.com/opendlt/aptos-toolkit/internal/config"
	"github.com/opendlt/aptos-toolkit/internal/logz"
	"github.com/opendlt/aptos-toolkit/internal/netprofiles"
	"github.com/opendlt/aptos-toolkit/types"
	"github.com/opendlt/aptos-toolkit/wallet"
)

// passphraseEnv names the variable holding the keystore passphrase
const passphraseEnv = "APTOS_KEYSTORE_PASSPHRASE"

var (
	configPath string
	network    string
	endpoint   string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "aptcli",
		Short:         "Command-line toolkit for the Aptos network",
		Long:          "Query the chain, sign and submit transactions, compare DEX and NFT marketplace prices, analyze transactions and relay events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&network, "network", "", "Network name: mainnet, testnet or devnet")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Full node URL, overrides the network default")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(
		infoCommand(),
		accountCommand(),
		balanceCommand(),
		resourceCommand(),
		txCommand(),
		eventsCommand(),
		viewCommand(),
		transferCommand(),
		callCommand(),
		quoteCommand(),
		swapCommand(),
		poolsCommand(),
		nftCommand(),
		analyzeCommand(),
		listenCommand(),
		relayCommand(),
		walletCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// env is the toolkit wired from configuration for one command
type env struct {
	cfg    *config.Config
	client *client.Client
	facade *contract.Facade
	logger *logz.Logger
}

// loadConfig reads the config file, if any, and applies the global flags
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if network != "" {
		if !netprofiles.IsValidNetwork(network) {
			return nil, fmt.Errorf("unknown network %s, expected one of %v", network, netprofiles.GetAvailableNetworks())
		}
		cfg.Network = strings.ToLower(network)
		cfg.Endpoint = netprofiles.BaseURL(cfg.Network)
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level, err := logz.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logz.New(level, "aptcli")

	c, err := client.New(&client.Config{
		Endpoint:          cfg.Endpoint,
		Network:           cfg.Network,
		Timeout:           cfg.GetTimeout(),
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.GetRetryDelay(),
		UserAgent:         "aptcli/1.0",
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	c.SetLogger(logger.WithPrefix("client"))

	fc := contract.DefaultConfig()
	fc.Options.MaxGasAmount = cfg.Gas.MaxGasAmount
	fc.Options.GasUnitPrice = cfg.Gas.GasUnitPrice
	fc.Options.ExpirationSecs = cfg.Gas.ExpirationSecs
	fc.ConfirmTimeout = cfg.GetConfirmTimeout()
	fc.PollInterval = cfg.GetPollInterval()
	fc.Concurrency = cfg.BatchConcurrency
	fc.EventBatchSize = uint64(cfg.Events.BatchSize)

	facade, err := contract.New(c, fc)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract facade: %w", err)
	}
	facade.SetLogger(logger.WithPrefix("contract"))

	return &env{cfg: cfg, client: c, facade: facade, logger: logger}, nil
}

// wallet loads the signing wallet from the configured source
func (e *env) wallet() (*wallet.Wallet, error) {
	w, err := wallet.FromConfig(&wallet.Source{
		Type:        e.cfg.Wallet.Type,
		Key:         e.cfg.Wallet.Key,
		KeystoreDir: e.cfg.Wallet.KeystoreDir,
		Passphrase:  os.Getenv(passphraseEnv),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return w, nil
}

// parseCall turns a function id and CLI argument tokens into a call
func parseCall(function string, typeArgs, tokens []string) (types.ContractCall, error) {
	address, module, name, err := types.ParseFunctionID(function)
	if err != nil {
		return types.ContractCall{}, err
	}
	args, err := parseArgs(tokens)
	if err != nil {
		return types.ContractCall{}, err
	}
	call := types.NewCall(address, module, name, typeArgs, args...)
	if err := call.Validate(); err != nil {
		return types.ContractCall{}, err
	}
	return call, nil
}

func parseArgs(tokens []string) ([]types.Arg, error) {
	args := make([]types.Arg, 0, len(tokens))
	for _, token := range tokens {
		arg, err := types.ParseArg(token)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", token, err)
		}
		args = append(args, arg)
	}
	return args, nil
}

// writeOutcome prints a write result and turns a failed write into an error
func writeOutcome(res *types.WriteResult) error {
	prettyPrint(res)
	if !res.Success {
		return fmt.Errorf("transaction failed: %s", res.ErrorMessage())
	}
	return nil
}

// prettyPrint formats and prints JSON objects with proper indentation
func prettyPrint(data interface{}) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Printf("Error formatting output: %v\n", err)
		fmt.Printf("%+v\n", data)
		return
	}
	fmt.Println(string(jsonBytes))
}
