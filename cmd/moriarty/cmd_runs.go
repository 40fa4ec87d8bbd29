package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/caseforge/moriarty/internal/runarchive"
)

var runsFlags struct {
	configPath string
	limit      int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived runs",
	RunE:  runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.StringVar(&runsFlags.configPath, "config", "", "Run config YAML (defaults apply when omitted)")
	f.IntVar(&runsFlags.limit, "limit", 20, "Maximum rows")
}

func runRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRunConfig(runsFlags.configPath)
	if err != nil {
		return err
	}
	archive, err := runarchive.Open(cfg.ArchivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	entries, err := archive.List(cmd.Context(), runsFlags.limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No archived runs.")
		return nil
	}
	for _, e := range entries {
		clean := ""
		if e.Clean {
			clean = " clean"
		}
		fmt.Fprintf(out, "%s  %-10s%s  $%.4f  %s  %s\n",
			e.RunID, e.Status, clean, e.CostUSD,
			e.FinishedAt.Local().Format(time.DateTime), e.Title)
	}
	return nil
}
