package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vibecoding/demo2apk/logger"
)

type recordingArchiver struct {
	archived []string
}

func (r *recordingArchiver) Archive(ctx context.Context, localPath, key string) error {
	r.archived = append(r.archived, key)
	return nil
}

func TestSweeper_RemovesExpiredEntriesOnly(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "Old--task1.apk")
	fresh := filepath.Join(dir, "Fresh--task2.apk")

	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("apk"), 0o644); err != nil {
			t.Fatalf("writing %q: %v", p, err)
		}
	}

	oldTime := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(old, oldTime, oldTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	arc := &recordingArchiver{}
	s := &Sweeper{
		Roots:     Roots{BuildsDir: dir},
		Retention: 2 * time.Hour,
		Interval:  time.Hour,
		Archiver:  arc,
		Log:       logger.Discard,
	}
	s.sweepOnce(context.Background())

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected expired file to be removed, stat err=%v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh file to survive, stat err=%v", err)
	}
	if len(arc.archived) != 1 || arc.archived[0] != "Old--task1.apk" {
		t.Fatalf("expected exactly the expired file archived, got %v", arc.archived)
	}
}

func TestSweeper_NoArchiverStillRemoves(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "Old.apk")
	if err := os.WriteFile(old, []byte("apk"), 0o644); err != nil {
		t.Fatalf("writing: %v", err)
	}
	oldTime := time.Now().Add(-3 * time.Hour)
	os.Chtimes(old, oldTime, oldTime)

	s := &Sweeper{
		Roots:     Roots{BuildsDir: dir},
		Retention: time.Hour,
		Interval:  time.Hour,
		Log:       logger.Discard,
	}
	s.sweepOnce(context.Background())

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected file to be removed even without an archiver")
	}
}
