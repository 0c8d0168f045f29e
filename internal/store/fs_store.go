package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"
)

const (
	StateFile = "update_state.json"
	lockFile  = ".srcwatch.lock"
)

var ErrLocked = errors.New("state is locked by another run")

// Store persists the source_id -> Fingerprint mapping as a whole.
type Store interface {
	// Load returns an empty state when nothing was saved yet.
	Load(ctx context.Context) (models.RunState, error)

	// Save replaces the persisted state atomically.
	Save(ctx context.Context, state models.RunState) error
}

type FS struct {
	dir       string
	statePath string
	lockPath  string
	mu        sync.Mutex
}

// NewFS creates dataDir if needed.
func NewFS(dataDir string) (*FS, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dataDir, err)
	}
	return OpenFS(dataDir), nil
}

// OpenFS touches nothing on disk. A missing dataDir loads as empty state.
func OpenFS(dataDir string) *FS {
	return &FS{
		dir:       dataDir,
		statePath: filepath.Join(dataDir, StateFile),
		lockPath:  filepath.Join(dataDir, lockFile),
	}
}

func (s *FS) Path() string { return s.statePath }

func (s *FS) Load(ctx context.Context) (models.RunState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("no prior state at %s", s.statePath)
			return models.RunState{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return models.RunState{}, nil
	}

	state := models.RunState{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.statePath, err)
	}
	return state, nil
}

func (s *FS) Save(ctx context.Context, state models.RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil {
		state = models.RunState{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := utils.WriteJSONAtomic(s.statePath, state); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	logger.Debug("state saved to %s (%d sources)", s.statePath, len(state))
	return nil
}

// Lock takes the single-writer lock for a run. The returned func releases it.
func (s *FS) Lock() (func() error, error) {
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			owner, _ := os.ReadFile(s.lockPath)
			return nil, fmt.Errorf("%w (pid %s, remove %s if stale)", ErrLocked, bytes.TrimSpace(owner), s.lockPath)
		}
		return nil, fmt.Errorf("create lock: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(s.lockPath)
		return nil, fmt.Errorf("write lock: %w", errors.Join(werr, cerr))
	}

	var once sync.Once
	return func() error {
		var rerr error
		once.Do(func() {
			if err := os.Remove(s.lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				rerr = fmt.Errorf("release lock: %w", err)
			}
		})
		return rerr
	}, nil
}
