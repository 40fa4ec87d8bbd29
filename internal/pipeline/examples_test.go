package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeExample(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadExamples_GlobAndOrder(t *testing.T) {
	root := t.TempDir()
	writeExample(t, root, "clues/b.md", "second example")
	writeExample(t, root, "clues/a.md", "first example")
	writeExample(t, root, "other/ignored.md", "unrelated")

	lib, err := LoadExamples(root, map[string][]string{
		StageClues: {"clues/**/*.md"},
	})
	if err != nil {
		t.Fatalf("LoadExamples: %v", err)
	}
	ctx := lib.DeveloperContext(StageClues)
	if !strings.Contains(ctx, "first example") || !strings.Contains(ctx, "second example") {
		t.Fatalf("context missing examples: %q", ctx)
	}
	if strings.Index(ctx, "first example") > strings.Index(ctx, "second example") {
		t.Fatal("examples must be concatenated in sorted path order")
	}
	if strings.Contains(ctx, "unrelated") {
		t.Fatal("non-matching files must not load")
	}
	if lib.Digest(StageClues) == "" {
		t.Fatal("loaded stage must have a digest")
	}
}

func TestLoadExamples_MissingStageIsEmpty(t *testing.T) {
	lib, err := LoadExamples(t.TempDir(), map[string][]string{
		StageProse: {"prose/*.md"},
	})
	if err != nil {
		t.Fatalf("LoadExamples: %v", err)
	}
	if got := lib.DeveloperContext(StageProse); got != "" {
		t.Fatalf("stage with no matches must be empty, got %q", got)
	}
	if got := lib.DeveloperContext("never_configured"); got != "" {
		t.Fatalf("unconfigured stage must be empty, got %q", got)
	}
}

func TestLoadExamples_SizeCapDropsOversize(t *testing.T) {
	root := t.TempDir()
	writeExample(t, root, "clues/small.md", "tiny")
	writeExample(t, root, "clues/zz-huge.md", strings.Repeat("x", maxExampleBytes))

	lib, err := LoadExamples(root, map[string][]string{
		StageClues: {"clues/*.md"},
	})
	if err != nil {
		t.Fatalf("LoadExamples: %v", err)
	}
	ctx := lib.DeveloperContext(StageClues)
	if !strings.Contains(ctx, "tiny") {
		t.Fatal("small example must load")
	}
	if !strings.Contains(ctx, "omitted: size cap") {
		t.Fatal("oversize example must be noted as omitted")
	}
	if len(ctx) > maxExampleBytes+1024 {
		t.Fatalf("context exceeds size cap: %d bytes", len(ctx))
	}
}

func TestLoadExamples_BadPattern(t *testing.T) {
	if _, err := LoadExamples(t.TempDir(), map[string][]string{
		StageClues: {"[bad"},
	}); err == nil {
		t.Fatal("invalid glob must error")
	}
}

func TestExampleLibrary_NilSafe(t *testing.T) {
	var lib *ExampleLibrary
	if lib.DeveloperContext(StageClues) != "" || lib.Digest(StageClues) != "" {
		t.Fatal("nil library must return empty values")
	}
}
