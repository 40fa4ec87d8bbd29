package pipeline

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/blake3"
)

// Store persists versioned stage artifacts under the run's logs root.
// Each stage holds a monotonically increasing version sequence and a
// single live pointer; retries always replace the live version, never
// accumulate alongside it.
type Store struct {
	mu   sync.Mutex
	root string
	// live maps stage -> latest version number (1-based).
	live map[string]int
	// digests maps stage -> blake3 hex digest of the live artifact.
	digests map[string]string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{
		root:    root,
		live:    map[string]int{},
		digests: map[string]string{},
	}, nil
}

func (s *Store) Root() string { return s.root }

// Put writes a new version of a stage artifact and advances the live
// pointer. Returns the new version number.
func (s *Store) Put(stage string, artifact []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.live[stage] + 1
	dir := filepath.Join(s.root, "artifacts", stage)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	path := filepath.Join(dir, fmt.Sprintf("v%d.json", version))
	if err := writeFileAtomic(path, artifact); err != nil {
		return 0, err
	}

	sum := blake3.Sum256(artifact)
	s.live[stage] = version
	s.digests[stage] = hex.EncodeToString(sum[:])
	return version, nil
}

// Live returns the live artifact bytes for a stage, or nil when the
// stage has not produced anything yet.
func (s *Store) Live(stage string) ([]byte, int, error) {
	s.mu.Lock()
	version := s.live[stage]
	s.mu.Unlock()
	if version == 0 {
		return nil, 0, nil
	}
	path := filepath.Join(s.root, "artifacts", stage, fmt.Sprintf("v%d.json", version))
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return b, version, nil
}

// Versions returns stage -> live version for every stage with output.
func (s *Store) Versions() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.live))
	for k, v := range s.live {
		out[k] = v
	}
	return out
}

// Digest returns the blake3 hex digest of the live artifact.
func (s *Store) Digest(stage string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.digests[stage]
}

// Checkpoint is the compact run snapshot written after every stage.
// msgpack keeps it small; the JSON artifacts remain the human-readable
// record.
type Checkpoint struct {
	RunID          string            `msgpack:"run_id"`
	Stage          string            `msgpack:"stage"`
	Timestamp      time.Time         `msgpack:"ts"`
	Versions       map[string]int    `msgpack:"versions"`
	Digests        map[string]string `msgpack:"digests"`
	// ExampleDigests records which few-shot example set each stage saw.
	ExampleDigests map[string]string `msgpack:"example_digests,omitempty"`
	Warnings       []string          `msgpack:"warnings"`
	CostUSD        float64           `msgpack:"cost_usd"`
}

// SaveCheckpoint writes checkpoint.msgpack in the run root.
func (s *Store) SaveCheckpoint(cp Checkpoint) error {
	s.mu.Lock()
	cp.Versions = make(map[string]int, len(s.live))
	for k, v := range s.live {
		cp.Versions[k] = v
	}
	cp.Digests = make(map[string]string, len(s.digests))
	for k, v := range s.digests {
		cp.Digests[k] = v
	}
	s.mu.Unlock()

	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	b, err := msgpack.Marshal(cp)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.root, "checkpoint.msgpack"), b)
}

// LoadCheckpoint reads the last checkpoint, if any.
func LoadCheckpoint(root string) (*Checkpoint, error) {
	b, err := os.ReadFile(filepath.Join(root, "checkpoint.msgpack"))
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := msgpack.Unmarshal(b, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// SaveResult writes the terminal result as result.json in the run root.
func (s *Store) SaveResult(res *Result) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.root, "result.json"), b)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
