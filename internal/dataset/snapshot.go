package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot holds the current dataset and swaps it atomically on reload.
type Snapshot struct {
	path string
	log  *slog.Logger

	current atomic.Pointer[Dataset]

	mu      sync.Mutex
	modTime time.Time
}

// NewSnapshot loads path once and returns a ready snapshot.
func NewSnapshot(ctx context.Context, path string, log *slog.Logger) (*Snapshot, error) {
	s := &Snapshot{path: path, log: log}
	if _, err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticSnapshot wraps an already loaded dataset. Reload is a no-op.
func NewStaticSnapshot(ds *Dataset) *Snapshot {
	s := &Snapshot{}
	s.current.Store(ds)
	return s
}

// Current returns the dataset readers should use.
func (s *Snapshot) Current() *Dataset {
	return s.current.Load()
}

// Reload re-reads the file if its modification time changed and reports
// whether a new dataset was installed. On error the previous dataset stays.
func (s *Snapshot) Reload(ctx context.Context) (bool, error) {
	if s.path == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		return false, fmt.Errorf("stat dataset: %w", err)
	}
	if s.current.Load() != nil && info.ModTime().Equal(s.modTime) {
		return false, nil
	}

	ds, err := LoadFile(ctx, s.path, s.log)
	if err != nil {
		return false, err
	}

	s.current.Store(ds)
	s.modTime = info.ModTime()
	return true, nil
}

// Watch reloads on every tick until ctx is done. onReload sees each newly
// installed dataset and onError each failed reload; either may be nil.
func (s *Snapshot) Watch(ctx context.Context, interval time.Duration, onReload func(*Dataset), onError func(error)) {
	if interval <= 0 || s.path == "" {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.Reload(ctx)
			if err != nil {
				if s.log != nil {
					s.log.Warn("dataset reload failed, keeping previous", slog.Any("err", err))
				}
				if onError != nil {
					onError(err)
				}
				continue
			}
			if changed && onReload != nil {
				onReload(s.Current())
			}
		}
	}
}
