package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/vibecoding/demo2apk/logger"
)

// Archiver mirrors a file to an object store before the sweeper deletes
// it locally. Implementations live in storage/archive; a nil Archiver
// means local-only retention, the spec.md default.
type Archiver interface {
	Archive(ctx context.Context, localPath, key string) error
}

// Sweeper implements spec.md §4.4's "Periodic sweeper": at startup and
// every Interval thereafter, it walks Roots.BuildsDir and removes any
// entry whose mtime exceeds Retention. Per-entry failures are logged and
// skipped; the sweeper itself never returns an error to its caller.
type Sweeper struct {
	Roots     Roots
	Retention time.Duration
	Interval  time.Duration
	Archiver  Archiver
	Log       logger.Logger
}

// Run blocks, sweeping immediately and then on every tick, until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	entries, err := os.ReadDir(s.Roots.BuildsDir)
	if err != nil {
		s.Log.Warn("[sweeper] reading builds dir %q: %v", s.Roots.BuildsDir, err)
		return
	}

	cutoff := time.Now().Add(-s.Retention)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			s.Log.Warn("[sweeper] stat %q: %v", entry.Name(), err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(s.Roots.BuildsDir, entry.Name())
		if s.Archiver != nil && !entry.IsDir() {
			if err := s.Archiver.Archive(ctx, path, entry.Name()); err != nil {
				s.Log.Warn("[sweeper] archiving %q before removal: %v", path, err)
			}
		}
		if err := os.RemoveAll(path); err != nil {
			s.Log.Warn("[sweeper] removing %q: %v", path, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.Log.Info("[sweeper] removed %d expired entries from %s", removed, s.Roots.BuildsDir)
	}
}
