package zip

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vibecoding/demo2apk/internal/cmdexec"
	"github.com/vibecoding/demo2apk/internal/pipeline"
	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/logger"
)

type recordingProgress struct {
	reports []string
}

func (r *recordingProgress) Report(message string, percent int) {
	r.reports = append(r.reports, message)
}

func writeTestZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractZip_WritesFilesAndRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "archive.zip")
	writeTestZip(t, src, map[string]string{"package.json": "{}", "src/index.js": "ok"})

	dest := filepath.Join(dir, "out")
	if err := extractZip(src, dest); err != nil {
		t.Fatalf("extractZip: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "package.json")); err != nil {
		t.Fatalf("expected package.json: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "src", "index.js")); err != nil {
		t.Fatalf("expected nested file: %v", err)
	}
}

func TestFindProjectRoot_FindsNestedWrapperFolder(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "my-project")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "package.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	root, err := findProjectRoot(dir)
	if err != nil {
		t.Fatalf("findProjectRoot: %v", err)
	}
	if root != nested {
		t.Fatalf("got %q, want %q", root, nested)
	}
}

func TestFindProjectRoot_FailsWithNoManifest(t *testing.T) {
	dir := t.TempDir()
	if _, err := findProjectRoot(dir); err == nil {
		t.Fatal("expected error when no manifest is present")
	}
}

func TestPipeline_MockBuildProducesArtifactAndReportsAllStages(t *testing.T) {
	builds := t.TempDir()
	p := &Pipeline{
		Runner: cmdexec.NewFakeRunner(),
		Log:    logger.Discard,
		Roots:  storage.Roots{BuildsDir: builds, UploadsDir: t.TempDir()},
	}

	progress := &recordingProgress{}
	res := p.Run(context.Background(), pipeline.Input{
		TaskID: "t1", AppName: "myapp", AppID: "com.vibecoding.myapp", MockBuild: true,
	}, progress)

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if _, err := os.Stat(res.ArtifactPath); err != nil {
		t.Fatalf("expected artifact at %q: %v", res.ArtifactPath, err)
	}
	if progress.reports[len(progress.reports)-1] != "Done" {
		t.Fatalf("expected final stage to be Done, got %q", progress.reports[len(progress.reports)-1])
	}
}
