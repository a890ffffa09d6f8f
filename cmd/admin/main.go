package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	eventlog "autoequip.ai/internal/persistence/log"
	"autoequip.ai/internal/sim/engine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "admin:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Inspect a running autoequip server or its data directory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newStatsCmd(), newDirectivesCmd(), newDBCmd(), newTraceCmd())
	return root
}

func newTraceCmd() *cobra.Command {
	var (
		dataDir string
		agentID string
		limit   int
		reason  string
	)
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print traced evaluations, newest last",
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := eventlog.TraceFiles(filepath.Join(dataDir, "trace"))
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no trace files under %s", dataDir)
			}
			var keep []engine.Evaluation
			err = eventlog.ReadEvaluations(files, func(ev engine.Evaluation) error {
				if agentID != "" && ev.AgentID != agentID {
					return nil
				}
				if reason != "" && ev.Reason != reason {
					return nil
				}
				keep = append(keep, ev)
				if limit > 0 && len(keep) > limit {
					keep = keep[1:]
				}
				return nil
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, ev := range keep {
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	cmd.Flags().StringVar(&agentID, "agent", "", "only this agent")
	cmd.Flags().StringVar(&reason, "reason", "", "only evaluations ending with this reason (e.g. NO_IMPROVEMENT)")
	cmd.Flags().IntVar(&limit, "limit", 20, "keep the last N matches (0 = all)")
	return cmd
}
