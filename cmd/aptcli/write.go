package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/opendlt/aptos-toolkit/types"
)

func transferCommand() *cobra.Command {
	var coinType string
	var simulate bool

	cmd := &cobra.Command{
		Use:   "transfer <recipient> <amount>",
		Short: "Transfer APT or another coin and wait for confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %s: %w", args[1], err)
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			w, err := e.wallet()
			if err != nil {
				return err
			}
			defer w.Erase()

			call := types.NewCall("0x1", "aptos_account", "transfer", nil,
				types.Address(args[0]), types.Uint(amount))
			if coinType != "" && coinType != types.AptosCoinType {
				call = types.NewCall("0x1", "coin", "transfer", []string{coinType},
					types.Address(args[0]), types.Uint(amount))
			}

			if simulate {
				sim, err := e.facade.Simulate(cmd.Context(), w, call)
				if err != nil {
					return err
				}
				prettyPrint(sim)
				return nil
			}

			e.logger.Info("Transferring %d from %s to %s", amount, w.Address(), args[0])
			res, err := e.facade.Write(cmd.Context(), w, call)
			if err != nil {
				return err
			}
			return writeOutcome(res)
		},
	}

	cmd.Flags().StringVar(&coinType, "coin", "", "Coin type, defaults to APT")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Build and validate without submitting")
	return cmd
}

func callCommand() *cobra.Command {
	var typeArgs []string
	var simulate bool
	var retries int
	var retryDelay time.Duration

	cmd := &cobra.Command{
		Use:   "call <function> [args...]",
		Short: "Submit an entry function call and wait for confirmation",
		Long:  "Submit an entry function call. Arguments use kind prefixes: u64:1, bool:true, address:0x1, hex:0x01, string:x",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			call, err := parseCall(args[0], typeArgs, args[1:])
			if err != nil {
				return err
			}

			e, err := newEnv()
			if err != nil {
				return err
			}
			w, err := e.wallet()
			if err != nil {
				return err
			}
			defer w.Erase()

			if simulate {
				sim, err := e.facade.Simulate(cmd.Context(), w, call)
				if err != nil {
					return err
				}
				prettyPrint(sim)
				return nil
			}

			res, err := e.facade.RetryFailedCall(cmd.Context(), w, call, retries, retryDelay)
			if err != nil {
				return err
			}
			return writeOutcome(res)
		},
	}

	cmd.Flags().StringSliceVar(&typeArgs, "type-args", nil, "Type arguments")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Build and validate without submitting")
	cmd.Flags().IntVar(&retries, "retries", 1, "Attempts before giving up on a failed call")
	cmd.Flags().DurationVar(&retryDelay, "retry-delay", time.Second, "Wait between attempts")
	return cmd
}
