package main

import (
	"fmt"

	"github.com/caseforge/moriarty/internal/llm"
	"github.com/caseforge/moriarty/internal/pipeline"

	// Providers register themselves on import; API keys in the
	// environment decide which are active.
	_ "github.com/caseforge/moriarty/internal/llm/providers/anthropic"
	_ "github.com/caseforge/moriarty/internal/llm/providers/openai"
)

// loadRunConfig reads the YAML config, or returns defaults when no path
// was given.
func loadRunConfig(path string) (pipeline.Config, error) {
	if path == "" {
		var cfg pipeline.Config
		cfg.ApplyDefaults()
		return cfg, nil
	}
	return pipeline.LoadConfig(path)
}

// buildGenerator wires the provider client and few-shot example library
// into the stage generator. The returned digests identify the example
// set each stage will see, for the run's checkpoint record.
func buildGenerator(cfg pipeline.Config) (pipeline.Generator, map[string]string, error) {
	client, err := llm.NewClientFromEnv()
	if err != nil {
		return nil, nil, err
	}
	var examples *pipeline.ExampleLibrary
	var digests map[string]string
	if cfg.ExamplesRoot != "" {
		examples, err = pipeline.LoadExamples(cfg.ExamplesRoot, cfg.ExamplePatterns)
		if err != nil {
			return nil, nil, fmt.Errorf("load examples: %w", err)
		}
		digests = map[string]string{}
		for stage := range cfg.ExamplePatterns {
			if d := examples.Digest(stage); d != "" {
				digests[stage] = d
			}
		}
	}
	return &pipeline.LLMGenerator{
		Client:   client,
		Params:   cfg.Stages,
		Examples: examples,
	}, digests, nil
}
