package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opendlt/aptos-toolkit/internal/crypto/keystore"
	"github.com/opendlt/aptos-toolkit/wallet"
)

func walletCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Key management utilities",
		Long:  "Generate, show and store ed25519 wallet keys",
	}

	cmd.AddCommand(
		walletGenerateCommand(),
		walletShowCommand(),
		walletKeystoreCommand(),
	)
	return cmd
}

func walletGenerateCommand() *cobra.Command {
	var filePath string
	var showPrivate bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new ed25519 wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet.Generate()
			if err != nil {
				return fmt.Errorf("failed to generate wallet: %w", err)
			}
			defer w.Erase()

			out := map[string]interface{}{
				"address":    w.Address(),
				"public_key": w.PublicKeyHex(),
			}
			if filePath != "" {
				if err := w.SaveToFile(filePath); err != nil {
					return err
				}
				out["file"] = filePath
			}
			if showPrivate {
				priv, err := w.PrivateKeyHex()
				if err != nil {
					return err
				}
				out["private_key"] = priv
				out["note"] = "Store the private key securely. It will not be shown again."
			}
			prettyPrint(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Save the key to this file with 0600 permissions")
	cmd.Flags().BoolVar(&showPrivate, "show-private", false, "Print the private key")
	return cmd
}

func walletShowCommand() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the address of the configured wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			var w *wallet.Wallet
			var err error
			if filePath != "" {
				w, err = wallet.LoadFromFile(filePath)
			} else {
				var e *env
				if e, err = newEnv(); err != nil {
					return err
				}
				w, err = e.wallet()
			}
			if err != nil {
				return err
			}
			defer w.Erase()

			prettyPrint(map[string]interface{}{
				"address":    w.Address(),
				"public_key": w.PublicKeyHex(),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Read the key from this file instead of the configured source")
	return cmd
}

func walletKeystoreCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "keystore",
		Short: "Manage the encrypted keystore",
		Long:  "Manage the encrypted keystore. The passphrase is read from " + passphraseEnv,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Keystore directory, defaults to wallet.keystoreDir")

	open := func() (*keystore.Keystore, error) {
		if dir == "" {
			cfg, err := loadConfig()
			if err != nil {
				return nil, err
			}
			dir = cfg.Wallet.KeystoreDir
		}
		if dir == "" {
			return nil, fmt.Errorf("--dir is required")
		}
		ks, err := keystore.NewWithPassphrase(dir, os.Getenv(passphraseEnv))
		if err != nil {
			return nil, fmt.Errorf("failed to open keystore: %w", err)
		}
		return ks, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored keys",
			RunE: func(cmd *cobra.Command, args []string) error {
				ks, err := open()
				if err != nil {
					return err
				}
				entries := ks.List()
				keys := make([]map[string]interface{}, 0, len(entries))
				for _, entry := range entries {
					keys = append(keys, map[string]interface{}{
						"alias":      entry.Alias,
						"address":    entry.Address,
						"public_key": entry.PubKeyHex,
						"created_at": entry.CreatedAt,
					})
				}
				prettyPrint(map[string]interface{}{
					"keystore":  ks.Path(),
					"key_count": len(keys),
					"keys":      keys,
				})
				return nil
			},
		},
		&cobra.Command{
			Use:   "new <alias>",
			Short: "Generate a wallet directly into the keystore",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ks, err := open()
				if err != nil {
					return err
				}
				w, err := wallet.Generate()
				if err != nil {
					return err
				}
				defer w.Erase()
				if err := w.SaveToKeystore(ks, args[0]); err != nil {
					return err
				}
				prettyPrint(map[string]interface{}{"alias": args[0], "address": w.Address()})
				return nil
			},
		},
		&cobra.Command{
			Use:   "import <alias> <private-key>",
			Short: "Import a hex, base64 or PKCS#8 private key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ks, err := open()
				if err != nil {
					return err
				}
				w, err := wallet.Parse(args[1])
				if err != nil {
					return err
				}
				defer w.Erase()
				if err := w.SaveToKeystore(ks, args[0]); err != nil {
					return err
				}
				prettyPrint(map[string]interface{}{"alias": args[0], "address": w.Address()})
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <alias>",
			Short: "Remove a key from the keystore",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ks, err := open()
				if err != nil {
					return err
				}
				if err := ks.Delete(args[0]); err != nil {
					return err
				}
				prettyPrint(map[string]interface{}{"alias": args[0], "deleted": true})
				return nil
			},
		},
	)
	return cmd
}
