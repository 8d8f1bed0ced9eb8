package tempfile_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/vibecoding/demo2apk/internal/tempfile"
)

func nilError(t *testing.T, err error, format string, args ...any) {
	t.Helper()
	if err != nil {
		t.Fatalf(format, args...)
	}
}

func check(t *testing.T, ok bool, format string, args ...any) {
	t.Helper()
	if !ok {
		t.Errorf(format, args...)
	}
}

func require(t *testing.T, ok bool) {
	t.Helper()
	if !ok {
		t.Fatal("assertion failed")
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New()
	nilError(t, err, `New() = %v`, err)

	t.Cleanup(func() {
		check(t, f.Close() == nil, "failed to close file: %s", f.Name())
		check(t, os.Remove(f.Name()) == nil, "failed to remove file: %s", f.Name())
	})

	require(t, strings.HasPrefix(f.Name(), os.TempDir()))
}

func TestNewWithFilename(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New(tempfile.WithName("foo.txt"))
	nilError(t, err, `New(WithName("foo.txt")) = %v`, err)

	t.Cleanup(func() {
		check(t, f.Close() == nil, "failed to close file: %s", f.Name())
		check(t, os.Remove(f.Name()) == nil, "failed to remove file: %s", f.Name())
	})

	require(t, strings.HasPrefix(f.Name(), os.TempDir()))
}

func TestNewWithDir(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New(tempfile.WithDir("TestNewWithDir"))
	nilError(t, err, `New(WithDir("TestNewWithDir")) = %v`, err)

	dir := filepath.Join(os.TempDir(), "TestNewWithDir")

	t.Cleanup(func() {
		check(t, f.Close() == nil, "failed to close file: %s", f.Name())
		check(t, os.RemoveAll(dir) == nil, "failed to remove dir: %s", dir)
	})

	require(t, strings.HasPrefix(f.Name(), dir))
}

func TestNewWithPerms(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("Windows doesn't support or need checking if chmod worked")
	}

	f, err := tempfile.New(tempfile.WithPerms(0o600))
	nilError(t, err, `New(WithPerms(0o600)) = %v`, err)

	t.Cleanup(func() {
		check(t, f.Close() == nil, "failed to close file: %s", f.Name())
		check(t, os.Remove(f.Name()) == nil, "failed to remove file: %s", f.Name())
	})

	fi, err := os.Stat(f.Name())
	nilError(t, err, "os.Stat(%q) = %s", f.Name(), err)

	require(t, fi.Mode().Perm() == os.FileMode(0o600))
}

func TestNewWithFilenameAndKeepExtension(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New(tempfile.WithName("foo.txt"), tempfile.KeepingExtension())
	nilError(t, err, `New(WithName("foo.txt"), KeepingExtension()) = %v`, err)

	t.Cleanup(func() {
		check(t, f.Close() == nil, "failed to close file: %s", f.Name())
		check(t, os.Remove(f.Name()) == nil, "failed to remove file: %s", f.Name())
	})

	require(t, filepath.Ext(f.Name()) == ".txt")
}

func TestNewWithoutFilenameAndKeepExtension(t *testing.T) {
	t.Parallel()

	f, err := tempfile.New(tempfile.KeepingExtension())
	nilError(t, err, `New(KeepingExtension()) = %v`, err)

	check(t, f.Close() == nil, "failed to close file: %s", f.Name())
	nilError(t, os.Remove(f.Name()), "failed to remove file: %s", f.Name())
}

func TestNewClosed(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed()
	nilError(t, err, `NewClosed() = %v`, err)

	t.Cleanup(func() {
		check(t, os.Remove(filename) == nil, "failed to remove file: %s", filename)
	})

	require(t, strings.HasPrefix(filename, os.TempDir()))
}

func TestNewClosedWithFilename(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed(tempfile.WithName("foo.txt"))
	nilError(t, err, `NewClosed(WithName("foo.txt")) = %v`, err)

	t.Cleanup(func() {
		check(t, os.Remove(filename) == nil, "failed to remove file: %s", filename)
	})

	require(t, strings.HasPrefix(filename, os.TempDir()))
}

func TestNewClosedWithDir(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed(tempfile.WithDir("TestNewClosedWithDir"))
	nilError(t, err, `NewClosed(WithDir("TestNewClosedWithDir")) = %v`, err)

	dir := filepath.Join(os.TempDir(), "TestNewClosedWithDir")

	t.Cleanup(func() {
		check(t, os.RemoveAll(dir) == nil, "failed to remove dir: %s", dir)
	})

	require(t, strings.HasPrefix(filename, dir))
}

func TestNewClosedWithPerms(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("Windows doesn't support or need checking if chmod worked")
	}

	filename, err := tempfile.NewClosed(tempfile.WithPerms(0o600))
	nilError(t, err, `NewClosed(WithPerms(0o600)) = %v`, err)

	t.Cleanup(func() {
		check(t, os.Remove(filename) == nil, "failed to remove file: %s", filename)
	})

	fi, err := os.Stat(filename)
	nilError(t, err, "os.Stat(%q) = %s", filename, err)

	require(t, fi.Mode().Perm() == os.FileMode(0o600))
}

func TestNewClosedWithFilenameAndKeepExtension(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed(tempfile.WithName("foo.txt"), tempfile.KeepingExtension())
	nilError(t, err, `NewClosed(WithName("foo.txt"), KeepingExtension()) = %v`, err)

	t.Cleanup(func() {
		check(t, os.Remove(filename) == nil, "failed to remove file: %s", filename)
	})

	require(t, filepath.Ext(filename) == ".txt")
}

func TestNewClosedWithoutFilenameAndKeepExtension(t *testing.T) {
	t.Parallel()

	filename, err := tempfile.NewClosed(tempfile.KeepingExtension())
	nilError(t, err, `NewClosed(KeepingExtension()) = %v`, err)

	nilError(t, os.Remove(filename), "failed to remove file: %s", filename)
}
