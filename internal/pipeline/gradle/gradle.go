// Package gradle provisions the Gradle wrapper a build project needs
// per spec.md §4.5.6: use a system Gradle if present to generate one, or
// download a pinned distribution into a reusable cache.
package gradle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/vibecoding/demo2apk/internal/cmdexec"
	"github.com/vibecoding/demo2apk/internal/osutil"
	"github.com/vibecoding/demo2apk/internal/tempfile"
	"github.com/vibecoding/demo2apk/logger"
)

const (
	// PinnedVersion is the Gradle distribution version this module
	// provisions when no system Gradle is available.
	PinnedVersion       = "8.7"
	distributionURLBase = "https://services.gradle.org/distributions/gradle-%s-bin.zip"

	// MaxHeapMB bounds JVM heap for the debug build, per spec.md §4.5.6,
	// to keep Gradle within container memory limits.
	MaxHeapMB = 1024
)

// EnsureWrapper makes sure projectDir/gradlew exists and is executable,
// generating it via a system Gradle if one is on PATH, or by downloading
// and unzipping a pinned distribution into a cache directory otherwise.
func EnsureWrapper(ctx context.Context, log logger.Logger, runner cmdexec.Runner, projectDir string) error {
	wrapperPath := filepath.Join(projectDir, "gradlew")
	if osutil.FileExists(wrapperPath) {
		return osutil.ChmodExecutable(wrapperPath)
	}

	gradleBin, err := systemGradleOrDownload(ctx, log)
	if err != nil {
		return err
	}

	res, err := runner.Run(ctx, log, cmdexec.Command{
		Argv: []string{gradleBin, "wrapper", "--gradle-version", PinnedVersion},
		Dir:  projectDir,
	})
	if err != nil {
		return fmt.Errorf("gradle: generating wrapper: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("gradle: wrapper generation exited %d: %s", res.ExitCode, res.Output)
	}

	return osutil.ChmodExecutable(wrapperPath)
}

func systemGradleOrDownload(ctx context.Context, log logger.Logger) (string, error) {
	if path, err := exec.LookPath("gradle"); err == nil {
		log.Debug("[gradle] using system gradle at %s", path)
		return path, nil
	}
	return downloadPinnedGradle(ctx, log)
}

// downloadPinnedGradle fetches and unzips the pinned distribution into
// ~/.gradle/gradle-dist/gradle-<version>/, reusing it on subsequent
// calls.
func downloadPinnedGradle(ctx context.Context, log logger.Logger) (string, error) {
	home, err := osutil.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("gradle: resolving home dir: %w", err)
	}
	cacheDir := filepath.Join(home, ".gradle", "gradle-dist", "gradle-"+PinnedVersion)
	bin := filepath.Join(cacheDir, "gradle-"+PinnedVersion, "bin", "gradle")
	if osutil.FileExists(bin) {
		return bin, nil
	}

	log.Info("[gradle] downloading pinned distribution %s", PinnedVersion)
	zipPath, err := tempfile.NewClosed(tempfile.WithName("gradle-"+PinnedVersion+".zip"), tempfile.KeepingExtension())
	if err != nil {
		return "", fmt.Errorf("gradle: reserving download path: %w", err)
	}
	if err := downloadFile(ctx, fmt.Sprintf(distributionURLBase, PinnedVersion), zipPath); err != nil {
		return "", err
	}
	defer os.Remove(zipPath)

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("gradle: creating cache dir: %w", err)
	}
	if err := unzip(zipPath, cacheDir); err != nil {
		return "", err
	}
	if err := osutil.ChmodExecutable(bin); err != nil {
		return "", err
	}
	return bin, nil
}

func downloadFile(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("gradle: building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("gradle: downloading %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gradle: downloading %q: status %d", url, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("gradle: creating %q: %w", dest, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("gradle: writing %q: %w", dest, err)
	}
	return nil
}

func unzip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("gradle: opening %q: %w", src, err)
	}
	defer r.Close()

	for _, f := range r.File {
		path := filepath.Join(destDir, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("gradle: reading %q from archive: %w", f.Name, err)
		}
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return fmt.Errorf("gradle: creating %q: %w", path, err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return fmt.Errorf("gradle: extracting %q: %w", path, copyErr)
		}
	}
	return nil
}

// RunAssembleDebug runs `./gradlew assembleDebug --no-daemon` with the
// heap capped at MaxHeapMB, per spec.md §4.5.6.
func RunAssembleDebug(ctx context.Context, log logger.Logger, runner cmdexec.Runner, projectDir string) (cmdexec.Result, error) {
	return runner.Run(ctx, log, cmdexec.Command{
		Argv: []string{"./gradlew", "assembleDebug", "--no-daemon"},
		Dir:  projectDir,
		Env:  []string{fmt.Sprintf("GRADLE_OPTS=-Xmx%dm", MaxHeapMB)},
	})
}
