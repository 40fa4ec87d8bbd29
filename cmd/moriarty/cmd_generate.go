package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caseforge/moriarty/internal/pipeline"
	"github.com/caseforge/moriarty/internal/runarchive"
)

var generateFlags struct {
	configPath string
	theme      string
	era        string
	length     string
	style      string
	seed       string
	runID      string
	strict     bool
	novelty    bool
	quiet      bool
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one mystery end to end",
	RunE:  runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateFlags.configPath, "config", "", "Run config YAML (defaults apply when omitted)")
	f.StringVar(&generateFlags.theme, "theme", "", "Thematic direction, e.g. 'locked room at a lighthouse'")
	f.StringVar(&generateFlags.era, "era", "", "Time period")
	f.StringVar(&generateFlags.length, "length", "", "Target length, e.g. 'novelette'")
	f.StringVar(&generateFlags.style, "style", "", "Narrative style")
	f.StringVar(&generateFlags.seed, "seed", "", "Optional premise seed")
	f.StringVar(&generateFlags.runID, "run-id", "", "Run ID override (ULID generated when empty)")
	f.BoolVar(&generateFlags.strict, "strict", false, "Fail the run on persistent fair-play violations")
	f.BoolVar(&generateFlags.novelty, "novelty", false, "Check the premise against archived runs")
	f.BoolVar(&generateFlags.quiet, "quiet", false, "Suppress progress output")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadRunConfig(generateFlags.configPath)
	if err != nil {
		return err
	}
	if generateFlags.strict {
		cfg.StrictFairPlay = true
	}
	if generateFlags.novelty {
		cfg.NoveltyCheck = true
	}

	gen, exampleDigests, err := buildGenerator(cfg)
	if err != nil {
		return err
	}

	archive, err := runarchive.Open(cfg.ArchivePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run archive unavailable: %v\n", err)
		archive = nil
	} else {
		defer archive.Close()
	}

	var priorPremises []string
	if archive != nil && cfg.NoveltyCheck {
		if premises, err := archive.RecentPremises(cmd.Context(), 20); err == nil {
			priorPremises = premises
		}
	}

	var progress pipeline.ProgressSink
	if !generateFlags.quiet {
		progress = func(ev map[string]any) {
			fmt.Fprintf(os.Stderr, "[%3v%%] %-22v %v\n", ev["percent"], ev["stage"], ev["message"])
		}
	}

	eng, err := pipeline.NewEngine(cfg, pipeline.Request{
		Theme:          generateFlags.theme,
		Era:            generateFlags.era,
		TargetLength:   generateFlags.length,
		NarrativeStyle: generateFlags.style,
		Seed:           generateFlags.seed,
	}, gen, pipeline.Options{
		Limiter:        pipeline.NewLimiter(cfg.MaxConcurrentCalls),
		Progress:       progress,
		PriorPremises:  priorPremises,
		RunID:          generateFlags.runID,
		ExampleDigests: exampleDigests,
	})
	if err != nil {
		return err
	}

	res, runErr := eng.Run(cmd.Context())
	if archive != nil && res != nil {
		if err := archive.Record(cmd.Context(), res); err != nil {
			fmt.Fprintf(os.Stderr, "archive run: %v\n", err)
		}
	}
	if res != nil {
		printResult(cmd, res, eng.ArtifactRoot())
	}
	return runErr
}

func printResult(cmd *cobra.Command, res *pipeline.Result, artifactRoot string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:       %s\n", res.RunID)
	fmt.Fprintf(out, "Status:    %s", res.Status)
	if res.Clean {
		fmt.Fprintf(out, " (clean)")
	}
	fmt.Fprintln(out)
	if res.Title != "" {
		fmt.Fprintf(out, "Title:     %s\n", res.Title)
	}
	if res.FailureClass != "" {
		fmt.Fprintf(out, "Failure:   %s\n", res.FailureClass)
	}
	if res.Revised {
		fmt.Fprintf(out, "Revised:   structural revision applied\n")
	}
	fmt.Fprintf(out, "Cost:      $%.4f\n", res.TotalCostUSD)
	fmt.Fprintf(out, "Duration:  %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Second))
	fmt.Fprintf(out, "Artifacts: %s\n", artifactRoot)
	if len(res.Warnings) > 0 {
		fmt.Fprintf(out, "Warnings:  (%d)\n", len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
}
