package toolkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agentloom/agentloom/core"
)

// Checkpoint is one durable snapshot of a running workflow.
type Checkpoint struct {
	ExecutionID string              `json:"execution_id"`
	CreatedAt   time.Time           `json:"created_at"`
	State       *core.WorkflowState `json:"state"`
}

// CheckpointStore persists and recovers workflow snapshots.
type CheckpointStore interface {
	Save(executionID string, state *core.WorkflowState) error
	// List returns all checkpoints for executionID, newest first.
	List(executionID string) ([]Checkpoint, error)
	// Latest returns the most recent checkpoint for executionID.
	Latest(executionID string) (Checkpoint, error)
}

// ErrNoCheckpoint is returned by Latest when nothing has been saved yet.
var ErrNoCheckpoint = fmt.Errorf("no checkpoint found")

// FileStore writes one timestamped JSON file per snapshot under its root
// directory.
type FileStore struct {
	root string
	now  func() time.Time
}

// FileStoreOptions configure NewFileStore.
type FileStoreOptions struct {
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &FileStore{root: root, now: opts.Now}, nil
}

// Save implements CheckpointStore.
func (s *FileStore) Save(executionID string, state *core.WorkflowState) error {
	cp := Checkpoint{
		ExecutionID: executionID,
		CreatedAt:   s.now().UTC(),
		State:       state.Clone(),
	}
	b, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json", executionID, cp.CreatedAt.Format("20060102T150405.000000000"))
	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// List implements CheckpointStore. Timestamped filenames sort
// lexicographically, so newest-first is a reversed sort.
func (s *FileStore) List(executionID string) ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}
	prefix := executionID + "_"
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	cps := make([]Checkpoint, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(s.root, name))
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", name, err)
		}
		var cp Checkpoint
		if err := json.Unmarshal(b, &cp); err != nil {
			return nil, fmt.Errorf("decode checkpoint %s: %w", name, err)
		}
		cps = append(cps, cp)
	}
	return cps, nil
}

// Latest implements CheckpointStore.
func (s *FileStore) Latest(executionID string) (Checkpoint, error) {
	cps, err := s.List(executionID)
	if err != nil {
		return Checkpoint{}, err
	}
	if len(cps) == 0 {
		return Checkpoint{}, ErrNoCheckpoint
	}
	return cps[0], nil
}

// MemoryStore keeps checkpoints in process memory. Useful for tests and
// single-shot runs.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string][]Checkpoint
	now  func() time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string][]Checkpoint), now: time.Now}
}

// Save implements CheckpointStore.
func (s *MemoryStore) Save(executionID string, state *core.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[executionID] = append(s.byID[executionID], Checkpoint{
		ExecutionID: executionID,
		CreatedAt:   s.now().UTC(),
		State:       state.Clone(),
	})
	return nil
}

// List implements CheckpointStore.
func (s *MemoryStore) List(executionID string) ([]Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.byID[executionID]
	out := make([]Checkpoint, len(saved))
	for i, cp := range saved {
		out[len(saved)-1-i] = cp
	}
	return out, nil
}

// Latest implements CheckpointStore.
func (s *MemoryStore) Latest(executionID string) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := s.byID[executionID]
	if len(saved) == 0 {
		return Checkpoint{}, ErrNoCheckpoint
	}
	return saved[len(saved)-1], nil
}
