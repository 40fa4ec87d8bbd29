// Package schema validates stage artifacts against a closed set of named
// JSON Schema contracts, one per artifact kind. The orchestrator never
// branches on error contents, only on valid/invalid; error strings are
// fed back verbatim to the generation capability for self-correction.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Artifact kinds, one per stage output shape.
const (
	KindSetting      = "setting"
	KindCast         = "cast"
	KindCase         = "case"
	KindClues        = "clues"
	KindOutline      = "outline"
	KindProse        = "prose"
	KindAuditVerdict = "audit_verdict"
	KindBlindVerdict = "blind_verdict"
	KindNovelty      = "novelty"
)

// Result is the validation contract exposed to the pipeline.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validator holds the compiled schemas for every artifact kind.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// New compiles every embedded schema. Compilation failure is a
// programming error surfaced at startup, not at validation time.
func New() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	v := &Validator{compiled: map[string]*jsonschema.Schema{}}
	for _, ent := range entries {
		name := ent.Name()
		kind := strings.TrimSuffix(name, ".json")
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, err
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(name, strings.NewReader(string(b))); err != nil {
			return nil, fmt.Errorf("schema %s: %w", kind, err)
		}
		s, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", kind, err)
		}
		v.compiled[kind] = s
	}
	return v, nil
}

// Kinds returns the known artifact kinds, sorted.
func (v *Validator) Kinds() []string {
	out := make([]string, 0, len(v.compiled))
	for k := range v.compiled {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks a raw JSON payload against the named contract.
// An unknown kind or malformed JSON is reported as invalid, never as a
// Go error: the retry wrapper treats every invalid result the same way.
func (v *Validator) Validate(kind string, payload []byte) Result {
	s, ok := v.compiled[kind]
	if !ok {
		return Result{Errors: []string{fmt.Sprintf("unknown artifact kind: %s", kind)}}
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Result{Errors: []string{fmt.Sprintf("artifact is not valid JSON: %v", err)}}
	}
	if err := s.Validate(doc); err != nil {
		return Result{Errors: flattenValidationError(err)}
	}
	return Result{Valid: true}
}

// flattenValidationError turns the nested jsonschema error tree into a
// flat list of location-prefixed messages.
func flattenValidationError(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, fmt.Sprintf("%s: %s", loc, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
