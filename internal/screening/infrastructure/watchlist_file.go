package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/SamGorr/tscmf-system/internal/screening/domain"
)

// FileWatchlistRepository serves sanctions reference data from a JSON file.
// A missing or malformed file is a hard ErrReferenceDataUnavailable failure,
// never an empty list.
type FileWatchlistRepository struct {
	path string

	mu      sync.RWMutex
	entries []domain.WatchlistEntry
	loaded  bool
}

func NewFileWatchlistRepository(path string) (*FileWatchlistRepository, error) {
	r := &FileWatchlistRepository{path: path}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the reference file. On failure the previously loaded
// entries are discarded so stale data cannot masquerade as current.
func (r *FileWatchlistRepository) Reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		r.invalidate()
		return fmt.Errorf("%w: read %s: %v", domain.ErrReferenceDataUnavailable, r.path, err)
	}

	var entries []domain.WatchlistEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		r.invalidate()
		return fmt.Errorf("%w: parse %s: %v", domain.ErrReferenceDataUnavailable, r.path, err)
	}

	r.mu.Lock()
	r.entries = entries
	r.loaded = true
	r.mu.Unlock()
	return nil
}

func (r *FileWatchlistRepository) invalidate() {
	r.mu.Lock()
	r.entries = nil
	r.loaded = false
	r.mu.Unlock()
}

func (r *FileWatchlistRepository) Entries(ctx context.Context) ([]domain.WatchlistEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return nil, domain.ErrReferenceDataUnavailable
	}
	return r.entries, nil
}
