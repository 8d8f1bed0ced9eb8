// Package zip implements the zip build pipeline (spec.md §4.5.3): a
// pre-built or buildable front-end project archive, wrapped into a
// Capacitor project and built into a debug APK.
package zip

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	kzip "github.com/klauspost/compress/zip"

	"github.com/vibecoding/demo2apk/internal/apperrors"
	"github.com/vibecoding/demo2apk/internal/appid"
	"github.com/vibecoding/demo2apk/internal/cmdexec"
	"github.com/vibecoding/demo2apk/internal/pipeline"
	"github.com/vibecoding/demo2apk/internal/pipeline/androidenv"
	"github.com/vibecoding/demo2apk/internal/pipeline/autorepair"
	"github.com/vibecoding/demo2apk/internal/pipeline/gradle"
	"github.com/vibecoding/demo2apk/internal/pipeline/icons"
	"github.com/vibecoding/demo2apk/internal/pipeline/projectdetect"
	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/logger"
)

// manifestNames are the files that mark a directory as a project root,
// per spec.md §4.5.3 step "locate project root".
var manifestNames = []string{"package.json"}

// Pipeline implements pipeline.Pipeline for kind=zip builds.
type Pipeline struct {
	Runner cmdexec.Runner
	Log    logger.Logger
	Roots  storage.Roots
}

var _ pipeline.Pipeline = (*Pipeline)(nil)

func (p *Pipeline) Run(ctx context.Context, in pipeline.Input, progress pipeline.Progress) pipeline.Result {
	if in.MockBuild {
		return p.runMock(in, progress)
	}

	progress.Report("Checking build environment", 5)
	sdkRoot, err := androidenv.ResolveSDKRoot()
	if err != nil {
		return pipeline.Fail("environment check: %v", err)
	}
	env := androidenv.BuildEnv(sdkRoot)

	safeName := appid.SanitizeDirName(in.AppName)
	workspace, err := androidenv.PrepareWorkspace(p.Roots.BuildsDir, safeName, "-build")
	if err != nil {
		return pipeline.Fail("workspace preparation: %v", err)
	}

	progress.Report("Extracting archive", 10)
	sourceInfo, err := os.Stat(in.UploadPath)
	if err != nil {
		return pipeline.Fail("reading uploaded archive: %v", err)
	}
	extractDir := filepath.Join(workspace, "src")
	if err := extractZip(in.UploadPath, extractDir); err != nil {
		return pipeline.Fail("extracting archive: %v", err)
	}

	progress.Report("Locating project root", 15)
	projectRoot, err := findProjectRoot(extractDir)
	if err != nil {
		return pipeline.Fail("locating project root: %v", err)
	}

	progress.Report("Detecting project type", 18)
	detection := projectdetect.Detect(projectRoot)
	pmCmd := string(detection.PackageManager)

	if detection.Type == projectdetect.TypeFrameworkStatic {
		progress.Report("Configuring static export", 20)
		if err := writeNextStaticExportConfig(projectRoot); err != nil {
			return pipeline.Fail("configuring static export: %v", err)
		}
	}

	if detection.Type == projectdetect.TypeBundlerBased {
		progress.Report("Auto-repairing project", 23)
		if _, err := autorepair.Repair(projectRoot); err != nil {
			return pipeline.Fail("auto-repair: %v", err)
		}
	}

	progress.Report("Installing dependencies", 25)
	installHeartbeat := pipeline.BandHeartbeat(progress, "Installing dependencies", 25, 38)
	if err := p.run(ctx, env, projectRoot, cmdexec.WithHeartbeat(p.Runner, pipeline.HeartbeatInterval, installHeartbeat),
		pmCmd, "install", "--include=dev"); err != nil {
		return pipeline.Fail("installing dependencies: %v", err)
	}

	progress.Report("Running project build", 40)
	buildHeartbeat := pipeline.BandHeartbeat(progress, "Running project build", 40, 53)
	if err := p.run(ctx, env, projectRoot, cmdexec.WithHeartbeat(p.Runner, pipeline.HeartbeatInterval, buildHeartbeat),
		pmCmd, "run", "build"); err != nil {
		return pipeline.Fail("running project build: %v", err)
	}

	progress.Report("Verifying build output", 55)
	outputDir := filepath.Join(projectRoot, detection.OutputDir)
	if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
		return pipeline.Fail("expected output directory %q not found after build", outputDir)
	}

	progress.Report("Installing native wrapper tooling", 60)
	if err := p.run(ctx, env, projectRoot, p.Runner, "npm", "install", "@capacitor/core", "@capacitor/cli", "@capacitor/android"); err != nil {
		return pipeline.Fail("installing wrapper tooling: %v", err)
	}
	if err := writeCapacitorConfig(projectRoot, in.AppID, in.AppName, detection.OutputDir); err != nil {
		return pipeline.Fail("writing wrapper config: %v", err)
	}

	progress.Report("Adding Android platform", 65)
	if err := p.run(ctx, env, projectRoot, p.Runner, "npx", "cap", "add", "android"); err != nil {
		return pipeline.Fail("adding android platform: %v", err)
	}

	progress.Report("Syncing resources", 70)
	if err := p.run(ctx, env, projectRoot, p.Runner, "npx", "cap", "sync", "android"); err != nil {
		return pipeline.Fail("syncing resources: %v", err)
	}

	progress.Report("Injecting app icon", 75)
	icon := icons.DefaultIcon()
	if in.IconPath != "" {
		loaded, err := icons.LoadSource(in.IconPath)
		if err != nil {
			return pipeline.Fail("loading icon: %v", err)
		}
		icon = loaded
	}
	resDir := filepath.Join(projectRoot, "android", "app", "src", "main", "res")
	if err := icons.InjectWrapper(icon, resDir); err != nil {
		return pipeline.Fail("injecting icon: %v", err)
	}

	androidDir := filepath.Join(projectRoot, "android")
	if err := gradle.EnsureWrapper(ctx, p.Log, p.Runner, androidDir); err != nil {
		return pipeline.Fail("gradle wrapper: %v", err)
	}

	progress.Report("Running Gradle debug build", 80)
	gradleHeartbeat := pipeline.BandHeartbeat(progress, "Running Gradle debug build", 80, 93)
	res, err := gradle.RunAssembleDebug(ctx, p.Log, cmdexec.WithHeartbeat(p.Runner, pipeline.HeartbeatInterval, gradleHeartbeat), androidDir)
	if err != nil {
		return pipeline.Fail("gradle build: %v", err)
	}
	if res.ExitCode != 0 {
		return pipeline.Fail("gradle build failed (exit %d): %s", res.ExitCode, res.Output)
	}

	progress.Report("Copying build artifact", 95)
	builtAPK := filepath.Join(androidDir, "app", "build", "outputs", "apk", "debug", "app-debug.apk")
	dest := p.Roots.ArtifactPath(in.AppName, in.TaskID, true)
	size, err := copyArtifact(builtAPK, dest)
	if err != nil {
		return pipeline.Fail("collecting artifact: %v", err)
	}
	if size != sourceInfo.Size() {
		p.Log.Warn("[zip] artifact size %d differs from source archive size %d", size, sourceInfo.Size())
	}

	progress.Report("Done", 100)
	return pipeline.Result{Success: true, ArtifactPath: dest, ArtifactSize: size}
}

func (p *Pipeline) run(ctx context.Context, env []string, dir string, runner cmdexec.Runner, argv ...string) error {
	res, err := runner.Run(ctx, p.Log, cmdexec.Command{Argv: argv, Dir: dir, Env: env})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%v exited %d: %s", argv, res.ExitCode, res.Output)
	}
	return nil
}

// extractZip extracts src into destDir using klauspost/compress's zip
// reader, which streams entries instead of stdlib archive/zip's
// read-the-whole-central-directory-into-memory approach, relevant to the
// multi-hundred-megabyte node_modules-laden archives this pipeline
// accepts.
func extractZip(src, destDir string) error {
	r, err := kzip.OpenReader(src)
	if err != nil {
		return apperrors.ToolchainWrap("opening archive", err)
	}
	defer r.Close()

	for _, f := range r.File {
		path := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(path, filepath.Clean(destDir)+string(os.PathSeparator)) && path != filepath.Clean(destDir) {
			return fmt.Errorf("zip: entry %q escapes destination directory", f.Name)
		}
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
			return fmt.Errorf("zip: reading %q: %w", f.Name, err)
		}
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return fmt.Errorf("zip: creating %q: %w", path, err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return fmt.Errorf("zip: extracting %q: %w", path, copyErr)
		}
	}
	return nil
}

// findProjectRoot checks extractDir and then its immediate subdirectories
// for a manifest file, so an archive with a single top-level wrapper folder
// (a common export shape) is still located correctly. Deeper levels are
// not searched.
func findProjectRoot(extractDir string) (string, error) {
	if hasManifest(extractDir) {
		return extractDir, nil
	}
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(extractDir, entry.Name())
		if hasManifest(candidate) {
			return candidate, nil
		}
	}
	return "", apperrors.Validation("no project manifest found in uploaded archive")
}

func hasManifest(dir string) bool {
	for _, name := range manifestNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func writeNextStaticExportConfig(projectRoot string) error {
	path := filepath.Join(projectRoot, "next.config.js")
	config := `/** @type {import('next').NextConfig} */
module.exports = { output: 'export' }
`
	return os.WriteFile(path, []byte(config), 0o644)
}

func writeCapacitorConfig(projectRoot, appID, appName, webDir string) error {
	path := filepath.Join(projectRoot, "capacitor.config.json")
	config := fmt.Sprintf(`{
  "appId": %q,
  "appName": %q,
  "webDir": %q
}
`, appID, appName, webDir)
	return os.WriteFile(path, []byte(config), 0o644)
}

func copyArtifact(src, dst string) (int64, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (p *Pipeline) runMock(in pipeline.Input, progress pipeline.Progress) pipeline.Result {
	for _, band := range []struct {
		msg string
		pct int
	}{
		{"Checking build environment", 5}, {"Extracting archive", 10},
		{"Locating project root", 15}, {"Detecting project type", 18},
		{"Installing dependencies", 25}, {"Running project build", 40},
		{"Verifying build output", 55}, {"Installing native wrapper tooling", 60},
		{"Adding Android platform", 65}, {"Syncing resources", 70},
		{"Injecting app icon", 75}, {"Running Gradle debug build", 80},
		{"Copying build artifact", 95}, {"Done", 100},
	} {
		progress.Report(band.msg, band.pct)
	}
	dest := p.Roots.ArtifactPath(in.AppName, in.TaskID, true)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return pipeline.Fail("mock build: %v", err)
	}
	payload := []byte("mock-apk:" + in.AppName)
	if err := os.WriteFile(dest, payload, 0o644); err != nil {
		return pipeline.Fail("mock build: %v", err)
	}
	return pipeline.Result{Success: true, ArtifactPath: dest, ArtifactSize: int64(len(payload))}
}
