// Package androidenv implements spec.md §4.5.1's common preconditions
// shared by both build pipelines: locating the Android SDK and preparing
// a clean per-build workspace.
package androidenv

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/vibecoding/demo2apk/internal/apperrors"
)

// candidateRoots returns, in priority order, the places an Android SDK
// install is commonly found; ResolveSDKRoot consults them only after the
// environment variables.
func candidateRoots() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return []string{filepath.Join(home, "Library", "Android", "sdk")}
	case "windows":
		return []string{filepath.Join(os.Getenv("LOCALAPPDATA"), "Android", "Sdk")}
	default:
		return []string{filepath.Join(home, "Android", "Sdk"), "/usr/lib/android-sdk"}
	}
}

// ResolveSDKRoot finds the Android SDK root, preferring an explicit
// environment variable over the platform's conventional install
// location, per spec.md §4.5.1.
func ResolveSDKRoot() (string, error) {
	for _, envVar := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		if v := os.Getenv(envVar); v != "" {
			if isDir(v) {
				return v, nil
			}
		}
	}
	for _, candidate := range candidateRoots() {
		if isDir(candidate) {
			return candidate, nil
		}
	}
	return "", apperrors.Environment("Android SDK not found: set ANDROID_HOME or ANDROID_SDK_ROOT")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// BuildEnv returns the process environment a build subprocess should
// run with: the caller's inherited environment plus the SDK root,
// platform-tools, and command-line tools exposed on PATH.
func BuildEnv(sdkRoot string) []string {
	env := os.Environ()
	env = append(env,
		"ANDROID_HOME="+sdkRoot,
		"ANDROID_SDK_ROOT="+sdkRoot,
	)
	pathDirs := []string{
		filepath.Join(sdkRoot, "platform-tools"),
		filepath.Join(sdkRoot, "cmdline-tools", "latest", "bin"),
		os.Getenv("PATH"),
	}
	joined := pathDirs[0]
	for _, d := range pathDirs[1:] {
		joined += string(os.PathListSeparator) + d
	}
	env = append(env, "PATH="+joined)
	return env
}

// PrepareWorkspace removes any prior directory at
// <buildsDir>/<safeAppName><suffix> and recreates it empty, per
// spec.md §4.5.1's "clean workspace" requirement.
func PrepareWorkspace(buildsDir, safeAppName, suffix string) (string, error) {
	dir := filepath.Join(buildsDir, safeAppName+suffix)
	if err := os.RemoveAll(dir); err != nil {
		return "", apperrors.Internal("removing prior workspace", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Internal("creating workspace", err)
	}
	return dir, nil
}
