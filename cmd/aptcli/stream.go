package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/opendlt/aptos-toolkit/analyzer"
	"github.com/opendlt/aptos-toolkit/dex"
	"github.com/opendlt/aptos-toolkit/events"
	"github.com/opendlt/aptos-toolkit/internal/health"
	"github.com/opendlt/aptos-toolkit/internal/rpc"
	"github.com/opendlt/aptos-toolkit/types"
)

func analyzeCommand() *cobra.Command {
	var flagged, quote string

	cmd := &cobra.Command{
		Use:   "analyze <hash>",
		Short: "Decode the trade direction, tokens, pools and venues of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			tx, err := e.client.GetTransactionByHash(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			cfg := analyzer.DefaultConfig()
			if flagged != "" {
				cfg.FlaggedCoin = flagged
			}
			if quote != "" {
				cfg.QuoteCoin = quote
			}
			a, err := analyzer.New(cfg)
			if err != nil {
				return err
			}
			prettyPrint(a.Analyze(tx))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagged, "flagged", "", "Coin marker whose sale for the quote coin counts as BUY")
	cmd.Flags().StringVar(&quote, "quote", "", "Quote coin marker")
	return cmd
}

func listenCommand() *cobra.Command {
	var interval time.Duration
	var eventType string

	cmd := &cobra.Command{
		Use:   "listen <address> <handle>",
		Short: "Poll an event handle and print new events until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}

			store, err := events.OpenStore(e.cfg.Events.StateDir)
			if err != nil {
				return err
			}
			defer store.Close()

			listener, err := events.NewListener(e.client, &events.Config{
				Address:   args[0],
				Handle:    args[1],
				Interval:  interval,
				BatchSize: uint64(e.cfg.Events.BatchSize),
				Store:     store,
			})
			if err != nil {
				return err
			}
			listener.SetLogger(e.logger.WithPrefix("listener"))

			e.logger.Info("Listening on %s every %s", listener.Key(), interval)
			err = listener.Run(cmd.Context(), func(ev types.Event) {
				if eventType != "" && !strings.Contains(ev.Type, eventType) {
					return
				}
				line, err := json.Marshal(ev)
				if err != nil {
					e.logger.Warn("Cannot encode event %d: %v", ev.SequenceNumber.Uint64(), err)
					return
				}
				fmt.Println(string(line))
			}, func(err error) {
				e.logger.Warn("Poll failed: %v", err)
			})
			if err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Poll interval")
	cmd.Flags().StringVar(&eventType, "type", "", "Only print events whose type contains this text")
	return cmd
}

func relayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Stream DEX venue events over websockets",
	}

	cmd.AddCommand(relayServeCommand(), relaySubscribeCommand())
	return cmd
}

func relayServeCommand() *cobra.Command {
	var venues []string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Monitor venue events and serve them on /ws",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			agg, err := e.dexAggregator(venues)
			if err != nil {
				return err
			}

			store, err := events.OpenStore(e.cfg.Events.StateDir)
			if err != nil {
				return err
			}
			defer store.Close()

			mcfg := dex.DefaultMonitorConfig()
			mcfg.Capacity = e.cfg.Events.Capacity
			mcfg.BatchSize = uint64(e.cfg.Events.BatchSize)
			mcfg.Store = store
			for _, a := range agg.Adapters() {
				mcfg.Intervals[a.Name()] = e.cfg.GetListenerPollInterval(a.Name(), a.PollInterval())
			}

			monitor, err := dex.NewMonitor(e.client, agg.Adapters(), mcfg)
			if err != nil {
				return err
			}
			monitor.SetLogger(e.logger.WithPrefix("monitor"))

			relay := events.NewRelay(nil)
			monitor.Register(relay)
			if err := monitor.Start(ctx); err != nil {
				return err
			}
			defer monitor.Close()

			if addr == "" {
				addr = e.cfg.Relay.ListenAddr
			}
			srv, err := rpc.NewServer(&rpc.ServerConfig{
				Addr:              addr,
				APIKeys:           e.cfg.Relay.APIKeys,
				CORSOrigins:       e.cfg.Relay.CORSOrigins,
				RequestsPerSecond: e.cfg.Relay.RequestsPerSecond,
				Burst:             e.cfg.Relay.Burst,
				TLSCertFile:       e.cfg.Relay.TLSCertFile,
				TLSKeyFile:        e.cfg.Relay.TLSKeyFile,
				Metrics:           e.cfg.Metrics.Enabled,
			}, &rpc.Dependencies{
				Relay:  relay,
				Health: health.NewHealthChecker(e.client, monitor),
				Quoter: agg,
			})
			if err != nil {
				return err
			}
			srv.SetLogger(e.logger.WithPrefix("rpc"))
			if err := srv.Start(); err != nil {
				return err
			}

			e.logger.Info("Relaying %d streams from %v on %s", monitor.StreamCount(), monitor.Venues(), srv.GetAddr())
			<-ctx.Done()

			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdown)
		},
	}

	cmd.Flags().StringSliceVar(&venues, "venue", nil, "Restrict to these venues")
	cmd.Flags().StringVar(&addr, "listen", "", "Listen address, overrides relay.listenAddr")
	return cmd
}

func relaySubscribeCommand() *cobra.Command {
	var venues []string

	cmd := &cobra.Command{
		Use:   "subscribe <relay-url>",
		Short: "Print events streamed by a relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := events.NewSubscriber(args[0], venues)
			if err != nil {
				return err
			}
			sub.Start(cmd.Context())

			for ev := range sub.Events() {
				line, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Println(string(line))
			}
			sub.Wait()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&venues, "venue", nil, "Venues to subscribe to, every venue when empty")
	return cmd
}
