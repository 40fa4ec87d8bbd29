package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/caseforge/moriarty/internal/llm"
)

// GenerateRequest names the stage being generated and carries the
// structured inputs and prior-attempt feedback. The orchestrator never
// constructs prompt wording itself; it supplies only this shape.
type GenerateRequest struct {
	Stage    string
	Inputs   map[string]any
	Feedback []string
	Attempt  int
}

type GenerateResult struct {
	Text             string
	CostUSD          float64
	PromptTokens     int
	CompletionTokens int
}

// Generator is the external generation capability for one named stage.
// Tests substitute deterministic fakes; production wires LLMGenerator.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// StageParams tunes one stage's generation call.
type StageParams struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// LLMGenerator adapts the llm client to the Generator contract. The
// user message is the stage's structured inputs rendered as JSON with
// feedback appended; few-shot examples ride in the developer context.
type LLMGenerator struct {
	Client   *llm.Client
	Params   map[string]StageParams
	Examples *ExampleLibrary
}

func (g *LLMGenerator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	params := g.Params[req.Stage]

	user, err := renderUserPayload(req)
	if err != nil {
		return GenerateResult{}, err
	}

	developer := ""
	if g.Examples != nil {
		developer = g.Examples.DeveloperContext(req.Stage)
	}

	resp, err := g.Client.Complete(ctx, llm.Request{
		Provider:    params.Provider,
		Model:       params.Model,
		System:      fmt.Sprintf("stage:%s", req.Stage),
		Developer:   developer,
		User:        user,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{
		Text:             resp.Text,
		CostUSD:          resp.CostUSD,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func renderUserPayload(req GenerateRequest) (string, error) {
	var b strings.Builder

	// Deterministic key order keeps payloads reproducible across runs.
	keys := make([]string, 0, len(req.Inputs))
	for k := range req.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	doc := map[string]any{}
	for _, k := range keys {
		doc[k] = req.Inputs[k]
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render %s inputs: %w", req.Stage, err)
	}
	b.Write(raw)

	if len(req.Feedback) > 0 {
		b.WriteString("\n\nPrevious attempt failed. Address every item:\n")
		for _, f := range req.Feedback {
			b.WriteString("- ")
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// ExtractJSON strips a Markdown code fence if the model wrapped its
// output in one, returning the raw JSON payload.
func ExtractJSON(text string) []byte {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	// Models occasionally preface JSON with a sentence; cut to the first
	// structural character.
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		if i := strings.IndexAny(s, "{["); i >= 0 {
			s = s[i:]
		}
	}
	return []byte(s)
}
