package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"multibagger/config"
	"multibagger/models"

	"github.com/spf13/cobra"
)

func newDiscoverCmd() *cobra.Command {
	var (
		set    string
		index  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "discover [SYMBOL...]",
		Short: "Run a discovery batch and print the bucketed report",
		Example: `  multibagger discover KEI.NS POLYCAB.NS
  multibagger discover --set "Defence"
  multibagger discover --index "NIFTY SMALLCAP 250"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && set == "" && index == "" {
				return errors.New("provide symbols, --set or --index")
			}

			sys, stop, err := startSystem()
			if err != nil {
				return err
			}
			defer stop()

			var run *models.DiscoveryRun
			switch {
			case index != "":
				run, err = sys.app.AnalyzeIndex(index)
			case set != "":
				run, err = sys.app.AnalyzeStockSet(set)
			default:
				run, err = sys.app.Analyze(args)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), run)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRun(run))
			return nil
		},
	}

	cmd.Flags().StringVar(&set, "set", "", "analyze a predefined stock set")
	cmd.Flags().StringVar(&index, "index", "", "analyze an NSE index (market-cap ceiling applies)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	cmd.MarkFlagsMutuallyExclusive("set", "index")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		asJSON  bool
		refresh bool
	)

	cmd := &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Analyze a single stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, stop, err := startSystem()
			if err != nil {
				return err
			}
			defer stop()

			if refresh && sys.repo != nil {
				symbol := strings.ToUpper(strings.TrimSpace(args[0]))
				if err := sys.repo.InvalidateSnapshot(cmd.Context(), symbol); err != nil {
					return err
				}
			}

			verdict, err := sys.app.AnalyzeSingle(args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), verdict)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderVerdict(*verdict))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verdict as JSON")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "drop the cached snapshot before analyzing")
	return cmd
}

func newSetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sets",
		Short: "List predefined stock sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			sets, err := config.LoadStockSets(cfg.Discovery.StockSetsFile)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderSets(sets))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print agent weights, thresholds and consensus strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, stop, err := startSystem()
			if err != nil {
				return err
			}
			defer stop()
			return writeJSON(cmd.OutOrStdout(), sys.pipeline.Status())
		},
	}
}

// startSystem wires everything for a one-shot command and marks the app
// initialized. stop releases the database and the signal handler.
func startSystem() (*system, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	sys, err := buildSystem(ctx, cfg)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if _, err := sys.app.Initialize(); err != nil {
		sys.close()
		cancel()
		return nil, nil, err
	}

	return sys, func() {
		sys.close()
		cancel()
	}, nil
}
