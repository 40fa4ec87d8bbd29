// Package llm is the provider-agnostic boundary to the external
// generation capability. The pipeline supplies which stage is running,
// structured inputs, and prior-attempt feedback; this package turns that
// into one provider call and reports text, token usage, and USD cost.
package llm

import (
	"fmt"
	"strings"
)

type Request struct {
	// Provider is the canonical provider key ("anthropic", "openai").
	// Empty selects the client's default provider.
	Provider string
	Model    string

	System    string
	Developer string
	User      string

	Temperature float64
	MaxTokens   int
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.User) == "" {
		return &ConfigurationError{Message: "request user content is required"}
	}
	if r.MaxTokens < 0 {
		return &ConfigurationError{Message: fmt.Sprintf("max tokens must be >= 0, got %d", r.MaxTokens)}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return &ConfigurationError{Message: fmt.Sprintf("temperature must be in [0,2], got %g", r.Temperature)}
	}
	return nil
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type Response struct {
	Text     string
	Usage    Usage
	CostUSD  float64
	Provider string
	Model    string
}
