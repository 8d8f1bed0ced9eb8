// Package storage manages the two on-disk roots spec.md §3/§6 names
// (uploads and builds) and the periodic sweeper that reclaims expired
// files from the builds root.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Roots holds the resolved, absolute filesystem roots for a server
// instance. Both are created on first use if missing.
type Roots struct {
	BuildsDir  string
	UploadsDir string
}

// UploadDir returns the per-task upload workspace,
// <UploadsDir>/<taskId>/, creating it if necessary.
func (r Roots) UploadDir(taskID string) (string, error) {
	dir := filepath.Join(r.UploadsDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: creating upload dir %q: %w", dir, err)
	}
	return dir, nil
}

// ArtifactPath returns the builds-root path for a finished artifact.
// With suffixed set it uses the appName--taskId form, which avoids
// collisions between concurrent builds of apps with the same name; both
// the zip and the HTML pipelines pass suffixed=true. Without it the bare
// app name is used.
func (r Roots) ArtifactPath(appName, taskID string, suffixed bool) string {
	name := appName + ".apk"
	if suffixed {
		name = appName + "--" + taskID + ".apk"
	}
	return filepath.Join(r.BuildsDir, name)
}

// EnsureRoots creates both roots up front so early failures (e.g. a
// read-only filesystem) surface at startup rather than mid-build.
func EnsureRoots(r Roots) error {
	for _, dir := range []string{r.BuildsDir, r.UploadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: creating %q: %w", dir, err)
		}
	}
	return nil
}

// RemoveUploadWorkspace deletes a task's upload workspace. Used on job
// removal; a missing directory is not an error.
func RemoveUploadWorkspace(r Roots, taskID string) error {
	dir := filepath.Join(r.UploadsDir, taskID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("storage: removing upload workspace %q: %w", dir, err)
	}
	return nil
}
