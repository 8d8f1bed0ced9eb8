package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRoots_ArtifactPath(t *testing.T) {
	r := Roots{BuildsDir: "/builds"}

	if got, want := r.ArtifactPath("HelloApp", "abc123", true), filepath.Join("/builds", "HelloApp--abc123.apk"); got != want {
		t.Fatalf("suffixed: got %q want %q", got, want)
	}
	if got, want := r.ArtifactPath("HelloApp", "abc123", false), filepath.Join("/builds", "HelloApp.apk"); got != want {
		t.Fatalf("unsuffixed: got %q want %q", got, want)
	}
}

func TestRoots_UploadDirCreatesDirectory(t *testing.T) {
	base := t.TempDir()
	r := Roots{UploadsDir: base}

	dir, err := r.UploadDir("task-1")
	if err != nil {
		t.Fatalf("UploadDir: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected upload dir to exist, err=%v", err)
	}
}

func TestRemoveUploadWorkspace(t *testing.T) {
	base := t.TempDir()
	r := Roots{UploadsDir: base}
	dir, err := r.UploadDir("task-2")
	if err != nil {
		t.Fatalf("UploadDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "upload.zip"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writefile: %v", err)
	}

	if err := RemoveUploadWorkspace(r, "task-2"); err != nil {
		t.Fatalf("RemoveUploadWorkspace: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected upload workspace to be removed")
	}
}
