// Package html implements the HTML build pipeline (spec.md §4.5.2): a
// single HTML file (plus siblings) wrapped into a Cordova shell project
// and built into a debug APK.
package html

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vibecoding/demo2apk/internal/appid"
	"github.com/vibecoding/demo2apk/internal/cmdexec"
	"github.com/vibecoding/demo2apk/internal/pipeline"
	"github.com/vibecoding/demo2apk/internal/pipeline/androidenv"
	"github.com/vibecoding/demo2apk/internal/pipeline/gradle"
	"github.com/vibecoding/demo2apk/internal/pipeline/htmlshell"
	"github.com/vibecoding/demo2apk/internal/pipeline/icons"
	"github.com/vibecoding/demo2apk/internal/pipeline/offlineify"
	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/logger"
)

// Pipeline implements pipeline.Pipeline for kind=html builds.
type Pipeline struct {
	Runner cmdexec.Runner
	Log    logger.Logger
	Roots  storage.Roots
}

var _ pipeline.Pipeline = (*Pipeline)(nil)

// Run executes the HTML pipeline's stages in order, reporting progress at
// the percentages spec.md §4.5.2 declares.
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

	progress.Report("Ensuring shell toolchain is installed", 10)
	if err := p.ensureShellCLI(ctx, env); err != nil {
		return pipeline.Fail("toolchain check: %v", err)
	}

	htmlPath := in.UploadPath
	siblingDir := filepath.Dir(in.UploadPath)

	rawHTML, err := os.ReadFile(htmlPath)
	if err != nil {
		return pipeline.Fail("reading uploaded HTML: %v", err)
	}
	html := string(rawHTML)

	if offlineify.NeedsOfflineify(html) {
		progress.Report("Bundling offline assets", 15)
		offlineDir := filepath.Join(siblingDir, "offline")
		if err := os.MkdirAll(offlineDir, 0o755); err != nil {
			return pipeline.Fail("offlineify: %v", err)
		}
		out, err := (&offlineify.Transformer{Runner: p.Runner, Log: p.Log}).Run(ctx, html, offlineDir)
		if err != nil {
			return pipeline.Fail("offlineify: %v", err)
		}
		rewritten, err := os.ReadFile(filepath.Join(out.Dir, "index.html"))
		if err != nil {
			return pipeline.Fail("offlineify: %v", err)
		}
		html = string(rewritten)
		siblingDir = out.Dir
	}

	safeName := appid.SanitizeDirName(in.AppName)
	progress.Report("Creating mobile app shell", 25)
	projectDir, err := androidenv.PrepareWorkspace(p.Roots.BuildsDir, safeName, "-shell")
	if err != nil {
		return pipeline.Fail("workspace preparation: %v", err)
	}
	if err := p.createShell(ctx, env, projectDir, in.AppID, in.AppName); err != nil {
		return pipeline.Fail("shell creation: %v", err)
	}

	progress.Report("Installing Android platform dependency", 32)
	if err := p.run(ctx, env, projectDir, "npm", "install", "cordova-android"); err != nil {
		return pipeline.Fail("android platform dependency: %v", err)
	}

	progress.Report("Adding Android platform", 38)
	if err := p.run(ctx, env, projectDir, "cordova", "platform", "add", "android"); err != nil {
		return pipeline.Fail("adding android platform: %v", err)
	}

	progress.Report("Injecting app icon", 42)
	icon := icons.DefaultIcon()
	if in.IconPath != "" {
		loaded, err := icons.LoadSource(in.IconPath)
		if err != nil {
			return pipeline.Fail("loading icon: %v", err)
		}
		icon = loaded
	}
	if err := icons.InjectShell(icon, projectDir); err != nil {
		return pipeline.Fail("injecting icon: %v", err)
	}

	progress.Report("Copying HTML into shell web root", 45)
	wwwDir := filepath.Join(projectDir, "www")
	if err := copyWebRoot(siblingDir, wwwDir); err != nil {
		return pipeline.Fail("copying web root: %v", err)
	}
	patched := htmlshell.PrepareForMobileShell(html)
	if err := os.WriteFile(filepath.Join(wwwDir, "index.html"), []byte(patched), 0o644); err != nil {
		return pipeline.Fail("writing patched index.html: %v", err)
	}

	progress.Report("Syncing web resources", 55)
	if err := p.run(ctx, env, projectDir, "cordova", "prepare", "android"); err != nil {
		return pipeline.Fail("syncing resources: %v", err)
	}

	progress.Report("Ensuring Gradle wrapper", 60)
	androidDir := filepath.Join(projectDir, "platforms", "android")
	if err := gradle.EnsureWrapper(ctx, p.Log, p.Runner, androidDir); err != nil {
		return pipeline.Fail("gradle wrapper: %v", err)
	}

	progress.Report("Running Android debug build", 70)
	heartbeat := pipeline.BandHeartbeat(progress, "Building Android debug APK", 70, 95)
	res, err := gradle.RunAssembleDebug(ctx, p.Log, cmdexec.WithHeartbeat(p.Runner, pipeline.HeartbeatInterval, heartbeat), androidDir)
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

	progress.Report("Done", 100)
	return pipeline.Result{Success: true, ArtifactPath: dest, ArtifactSize: size}
}

func (p *Pipeline) ensureShellCLI(ctx context.Context, env []string) error {
	res, err := p.Runner.Run(ctx, p.Log, cmdexec.Command{Argv: []string{"cordova", "--version"}, Env: env})
	if err == nil && res.ExitCode == 0 {
		return nil
	}
	install, err := p.Runner.Run(ctx, p.Log, cmdexec.Command{Argv: []string{"npm", "install", "-g", "cordova"}, Env: env})
	if err != nil {
		return err
	}
	if install.ExitCode != 0 {
		return fmt.Errorf("installing cordova CLI exited %d: %s", install.ExitCode, install.Output)
	}
	return nil
}

func (p *Pipeline) createShell(ctx context.Context, env []string, projectDir, appID, appName string) error {
	parent := filepath.Dir(projectDir)
	base := filepath.Base(projectDir)
	res, err := p.Runner.Run(ctx, p.Log, cmdexec.Command{
		Argv: []string{"cordova", "create", base, appID, appName},
		Dir:  parent,
		Env:  env,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("cordova create exited %d: %s", res.ExitCode, res.Output)
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, env []string, dir string, argv ...string) error {
	res, err := p.Runner.Run(ctx, p.Log, cmdexec.Command{Argv: argv, Dir: dir, Env: env})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%v exited %d: %s", argv, res.ExitCode, res.Output)
	}
	return nil
}

func copyWebRoot(srcDir, dstDir string) error {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if err := copyWebRoot(filepath.Join(srcDir, name), filepath.Join(dstDir, name)); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(filepath.Join(srcDir, name))
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(name))
		if (ext == ".html" || ext == ".htm") && htmlshell.StripEntryName(name) {
			name = "index.html"
		}
		if err := os.WriteFile(filepath.Join(dstDir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
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
		{"Checking build environment", 5}, {"Ensuring shell toolchain is installed", 10},
		{"Creating mobile app shell", 25}, {"Installing Android platform dependency", 32},
		{"Adding Android platform", 38}, {"Injecting app icon", 42},
		{"Copying HTML into shell web root", 45}, {"Syncing web resources", 55},
		{"Ensuring Gradle wrapper", 60}, {"Running Android debug build", 70},
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
