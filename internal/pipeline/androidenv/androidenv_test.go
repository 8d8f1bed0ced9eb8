package androidenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveSDKRoot_UsesEnvironmentVariable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANDROID_HOME", dir)
	t.Setenv("ANDROID_SDK_ROOT", "")

	got, err := ResolveSDKRoot()
	if err != nil {
		t.Fatalf("ResolveSDKRoot: %v", err)
	}
	if got != dir {
		t.Fatalf("got %q, want %q", got, dir)
	}
}

func TestResolveSDKRoot_FailsWhenNotFound(t *testing.T) {
	t.Setenv("ANDROID_HOME", "")
	t.Setenv("ANDROID_SDK_ROOT", "")
	t.Setenv("HOME", t.TempDir())

	if _, err := ResolveSDKRoot(); err == nil {
		t.Fatal("expected error when SDK is not found anywhere")
	}
}

func TestBuildEnv_ExposesSDKOnPath(t *testing.T) {
	env := BuildEnv("/opt/android-sdk")
	var path, home string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = e
		}
		if strings.HasPrefix(e, "ANDROID_HOME=") {
			home = e
		}
	}
	if home != "ANDROID_HOME=/opt/android-sdk" {
		t.Fatalf("unexpected ANDROID_HOME: %q", home)
	}
	if !strings.Contains(path, "/opt/android-sdk/platform-tools") {
		t.Fatalf("expected platform-tools on PATH, got %q", path)
	}
}

func TestPrepareWorkspace_RemovesPriorContentsAndRecreates(t *testing.T) {
	builds := t.TempDir()
	dir := filepath.Join(builds, "myapp-build")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dir, "stale.txt")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := PrepareWorkspace(builds, "myapp", "-build")
	if err != nil {
		t.Fatalf("PrepareWorkspace: %v", err)
	}
	if got != dir {
		t.Fatalf("got %q, want %q", got, dir)
	}
	if _, err := os.Stat(stale); err == nil {
		t.Fatal("expected stale file to be removed")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected workspace dir to exist: %v", err)
	}
}
