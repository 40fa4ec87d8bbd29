package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/caseforge/moriarty/internal/pipeline"
	"github.com/caseforge/moriarty/internal/runarchive"
)

var showFlags struct {
	configPath string
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showFlags.configPath, "config", "", "Run config YAML (defaults apply when omitted)")
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(showFlags.configPath)
	if err != nil {
		return err
	}
	archive, err := runarchive.Open(cfg.ArchivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	e, ok, err := archive.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run %s not found in archive", args[0])
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", e.RunID)
	fmt.Fprintf(out, "Status:   %s\n", e.Status)
	if e.Title != "" {
		fmt.Fprintf(out, "Title:    %s\n", e.Title)
	}
	if e.Premise != "" {
		fmt.Fprintf(out, "Premise:  %s\n", e.Premise)
	}
	if e.FailureClass != "" {
		fmt.Fprintf(out, "Failure:  %s\n", e.FailureClass)
	}
	if e.Revised {
		fmt.Fprintf(out, "Revised:  structural revision applied\n")
	}
	fmt.Fprintf(out, "Cost:     $%.4f\n", e.CostUSD)
	fmt.Fprintf(out, "Started:  %s\n", e.StartedAt.Local())
	fmt.Fprintf(out, "Finished: %s\n", e.FinishedAt.Local())
	if len(e.Warnings) > 0 {
		fmt.Fprintf(out, "Warnings: (%d)\n", len(e.Warnings))
		for _, w := range e.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
	printCheckpoint(out, filepath.Join(cfg.LogsRoot, e.RunID))
	return nil
}

// printCheckpoint lists the artifact versions and digests from the run's
// on-disk checkpoint. Missing checkpoints are normal: the run may have
// executed on another machine, or the logs root may have been pruned.
func printCheckpoint(out io.Writer, runRoot string) {
	cp, err := pipeline.LoadCheckpoint(runRoot)
	if err != nil {
		return
	}
	fmt.Fprintf(out, "Artifacts (checkpoint at %s):\n", cp.Stage)
	stages := make([]string, 0, len(cp.Versions))
	for stage := range cp.Versions {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	for _, stage := range stages {
		fmt.Fprintf(out, "  %-22s v%-3d %s\n", stage, cp.Versions[stage], shortDigest(cp.Digests[stage]))
	}
	if len(cp.ExampleDigests) > 0 {
		fmt.Fprintln(out, "Example sets:")
		stages = stages[:0]
		for stage := range cp.ExampleDigests {
			stages = append(stages, stage)
		}
		sort.Strings(stages)
		for _, stage := range stages {
			fmt.Fprintf(out, "  %-22s %s\n", stage, shortDigest(cp.ExampleDigests[stage]))
		}
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
