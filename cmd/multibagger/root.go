package main

import (
	"encoding/json"
	"fmt"
	"io"

	"multibagger/agents"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "multibagger",
		Short: "Multi-agent multibagger screener for NSE equities",
		Long: `multibagger scores Indian listed companies with five specialist agents
(fundamentals, management, technicals, smart money, policy) and a supervisor
that buckets each stock into high conviction, watchlist or rejected.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newDiscoverCmd(),
		newAnalyzeCmd(),
		newSetsCmd(),
		newStatusCmd(),
		newKeysCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", agents.SystemName, agents.SystemVersion)
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
