package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opendlt/aptos-toolkit/types"
)

func infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show ledger info of the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			info, err := e.client.GetChainInfo(cmd.Context())
			if err != nil {
				return err
			}
			prettyPrint(map[string]interface{}{
				"endpoint": e.client.GetEndpoint(),
				"network":  e.cfg.Network,
				"ledger":   info,
			})
			return nil
		},
	}
}

func accountCommand() *cobra.Command {
	var modules bool

	cmd := &cobra.Command{
		Use:   "account <address>",
		Short: "Show account sequence number and authentication key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			exists, err := e.client.AccountExists(ctx, args[0])
			if err != nil {
				return err
			}
			if !exists {
				prettyPrint(map[string]interface{}{"address": args[0], "exists": false})
				return nil
			}

			info, err := e.client.GetAccountInfo(ctx, args[0])
			if err != nil {
				return err
			}
			out := map[string]interface{}{
				"address": args[0],
				"exists":  true,
				"account": info,
			}
			if modules {
				mods, err := e.client.GetAccountModules(ctx, args[0])
				if err != nil {
					return err
				}
				names := make([]string, 0, len(mods))
				for _, m := range mods {
					var abi struct {
						Name string `json:"name"`
					}
					if json.Unmarshal(m.ABI, &abi) == nil && abi.Name != "" {
						names = append(names, abi.Name)
					}
				}
				out["modules"] = names
			}
			prettyPrint(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&modules, "modules", false, "Also list published module names")
	return cmd
}

func balanceCommand() *cobra.Command {
	var coinType string

	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Show the APT or coin balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if coinType != "" && coinType != types.AptosCoinType {
				raw, err := e.client.GetCoinBalance(ctx, args[0], coinType)
				if err != nil {
					return err
				}
				prettyPrint(map[string]interface{}{"address": args[0], "coin_type": coinType, "balance": raw})
				return nil
			}

			raw, err := e.client.GetAccountBalance(ctx, args[0])
			if err != nil {
				return err
			}
			apt, err := e.client.GetAPTBalance(ctx, args[0])
			if err != nil {
				return err
			}
			prettyPrint(map[string]interface{}{
				"address":   args[0],
				"coin_type": types.AptosCoinType,
				"balance":   raw,
				"apt":       apt.String(),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&coinType, "coin", "", "Coin type, defaults to APT")
	return cmd
}

func resourceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resource <address> [resource-type]",
		Short: "Show one resource or list every resource of an account",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				res, err := e.client.GetAccountResource(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				prettyPrint(res)
				return nil
			}
			resources, err := e.facade.GetResources(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			prettyPrint(resources)
			return nil
		},
	}
}

func txCommand() *cobra.Command {
	var byVersion bool

	cmd := &cobra.Command{
		Use:   "tx <hash|version>",
		Short: "Show a transaction by hash or version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			var tx *types.Transaction
			if byVersion {
				version, perr := strconv.ParseUint(args[0], 10, 64)
				if perr != nil {
					return fmt.Errorf("invalid version %s: %w", args[0], perr)
				}
				tx, err = e.client.GetTransactionByVersion(cmd.Context(), version)
			} else {
				tx, err = e.client.GetTransactionByHash(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			prettyPrint(tx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&byVersion, "version", false, "Treat the argument as a ledger version")
	return cmd
}

func eventsCommand() *cobra.Command {
	var limit uint64
	var start int64

	cmd := &cobra.Command{
		Use:   "events <address> <handle>",
		Short: "Fetch a page of events from an event handle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			var from *uint64
			if start >= 0 {
				s := uint64(start)
				from = &s
			}
			evs, err := e.client.GetAccountEvents(cmd.Context(), args[0], args[1], limit, from)
			if err != nil {
				return err
			}
			prettyPrint(evs)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&limit, "limit", 25, "Maximum number of events")
	cmd.Flags().Int64Var(&start, "start", -1, "First sequence number, latest page when negative")
	return cmd
}

func viewCommand() *cobra.Command {
	var typeArgs []string

	cmd := &cobra.Command{
		Use:   "view <function> [args...]",
		Short: "Call a view function",
		Long:  "Call a view function. Arguments use kind prefixes: u64:1, bool:true, address:0x1, hex:0x01, string:x",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			call, err := parseCall(args[0], typeArgs, args[1:])
			if err != nil {
				return err
			}

			res := e.facade.Read(cmd.Context(), call)
			prettyPrint(res)
			if !res.Success {
				return fmt.Errorf("view failed: %s", res.ErrorMessage())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&typeArgs, "type-args", nil, "Type arguments")
	return cmd
}
