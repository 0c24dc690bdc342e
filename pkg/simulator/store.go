package simulator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dsnplabs/graphsdk/pkg/config"
	"github.com/dsnplabs/graphsdk/pkg/errors"
)

// Run is one persisted simulation: its chain state plus the options it
// was started with, so an interrupted run resumes deterministically.
type Run struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Environment string    `json:"environment"`
	Options     Options   `json:"options"`
	Chain       *Chain    `json:"chain"`
}

// NewRun creates a fresh run with a random id and an empty chain.
func NewRun(env config.Environment, opts Options) *Run {
	return &Run{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Environment: string(env.Kind()),
		Options:     opts.defaults(),
		Chain:       NewChain(),
	}
}

// FileStore persists runs as JSON files in a base directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-backed run store. An empty baseDir defaults
// to ~/.config/graphsdk/runs.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve home directory")
		}
		baseDir = filepath.Join(home, ".config", "graphsdk", "runs")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create run directory")
	}
	return &FileStore{baseDir: baseDir}, nil
}

func (s *FileStore) runPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// Save writes a run to disk, replacing any earlier snapshot.
func (s *FileStore) Save(ctx context.Context, run *Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCodecEncode, err, "serialize run %s", run.ID)
	}
	if err := os.WriteFile(s.runPath(run.ID), data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write run %s", run.ID)
	}
	return nil
}

// Load reads a run by id; a missing run returns nil.
func (s *FileStore) Load(ctx context.Context, id string) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.runPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read run %s", id)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodecDecode, err, "parse run %s", id)
	}
	return &run, nil
}

// List returns the ids of all stored runs.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list runs")
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}

// Delete removes a stored run; deleting an absent run is a no-op.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.runPath(id)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete run %s", id)
	}
	return nil
}
