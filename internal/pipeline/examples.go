package pipeline

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/blake3"
)

// maxExampleBytes caps how much example text one stage may carry; files
// beyond the cap are dropped, largest-last, with a note in the context.
const maxExampleBytes = 32 * 1024

// ExampleLibrary loads few-shot example files per stage, selected by
// glob patterns from the run config. Patterns use doublestar syntax so
// a config can say `examples/clues/**/*.md`.
type ExampleLibrary struct {
	root     string
	patterns map[string][]string
	// loaded maps stage -> concatenated example text.
	loaded map[string]string
	// digests maps stage -> blake3 digest of the loaded text, recorded
	// so runs are attributable to the exact example set they saw.
	digests map[string]string
}

// LoadExamples resolves every stage's patterns relative to root.
// Missing patterns are not an error: a stage with no examples gets an
// empty developer context.
func LoadExamples(root string, patterns map[string][]string) (*ExampleLibrary, error) {
	lib := &ExampleLibrary{
		root:     root,
		patterns: patterns,
		loaded:   map[string]string{},
		digests:  map[string]string{},
	}
	fsys := os.DirFS(root)
	for stage, globs := range patterns {
		var paths []string
		for _, g := range globs {
			matches, err := doublestar.Glob(fsys, g)
			if err != nil {
				return nil, fmt.Errorf("examples for %s: bad pattern %q: %w", stage, g, err)
			}
			paths = append(paths, matches...)
		}
		sort.Strings(paths)

		var b strings.Builder
		for _, p := range paths {
			data, err := os.ReadFile(filepath.Join(root, p))
			if err != nil {
				return nil, fmt.Errorf("examples for %s: %w", stage, err)
			}
			if b.Len()+len(data) > maxExampleBytes {
				b.WriteString(fmt.Sprintf("\n[example %s omitted: size cap]\n", p))
				continue
			}
			b.WriteString(fmt.Sprintf("--- example: %s ---\n", p))
			b.Write(data)
			b.WriteString("\n")
		}
		text := b.String()
		lib.loaded[stage] = text
		if text != "" {
			sum := blake3.Sum256([]byte(text))
			lib.digests[stage] = hex.EncodeToString(sum[:])
		}
	}
	return lib, nil
}

// DeveloperContext returns the example text for a stage, empty when the
// stage has none.
func (l *ExampleLibrary) DeveloperContext(stage string) string {
	if l == nil {
		return ""
	}
	return l.loaded[stage]
}

// Digest returns the blake3 digest of a stage's example set.
func (l *ExampleLibrary) Digest(stage string) string {
	if l == nil {
		return ""
	}
	return l.digests[stage]
}
