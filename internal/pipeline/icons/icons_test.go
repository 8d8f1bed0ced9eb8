package icons

import (
	"image"
	"path/filepath"
	"testing"
)

func TestResize_ContainFitPreservesAspectRatio(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100)) // 2:1 aspect
	out := Resize(src, 96)

	if out.Bounds().Dx() != 96 || out.Bounds().Dy() != 96 {
		t.Fatalf("expected 96x96 canvas, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestResize_SquareSource(t *testing.T) {
	src := DefaultIcon()
	out := Resize(src, 48)
	if out.Bounds().Dx() != 48 || out.Bounds().Dy() != 48 {
		t.Fatalf("expected 48x48, got %dx%d", out.Bounds().Dx(), out.Bounds().Dy())
	}
}

func TestWritePNG_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "sub", "icon.png")
	img := Resize(DefaultIcon(), 72)

	if err := WritePNG(img, out); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	loaded, err := LoadSource(out)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if loaded.Bounds().Dx() != 72 || loaded.Bounds().Dy() != 72 {
		t.Fatalf("expected 72x72 round trip, got %dx%d", loaded.Bounds().Dx(), loaded.Bounds().Dy())
	}
}

func TestInjectWrapper_WritesAllDensitiesAndRemovesAdaptive(t *testing.T) {
	dir := t.TempDir()
	adaptiveDir := filepath.Join(dir, "mipmap-anydpi-v26")
	if err := WritePNG(DefaultIcon(), filepath.Join(adaptiveDir, "ic_launcher.xml.png")); err != nil {
		t.Fatalf("seeding adaptive dir: %v", err)
	}

	if err := InjectWrapper(DefaultIcon(), dir); err != nil {
		t.Fatalf("InjectWrapper: %v", err)
	}

	for _, d := range WrapperDensities {
		for _, name := range []string{"ic_launcher.png", "ic_launcher_round.png"} {
			p := filepath.Join(dir, "mipmap-"+d.Name, name)
			if _, err := LoadSource(p); err != nil {
				t.Errorf("expected %q to exist: %v", p, err)
			}
		}
	}

	if _, err := LoadSource(filepath.Join(adaptiveDir, "ic_launcher.xml.png")); err == nil {
		t.Fatal("expected mipmap-anydpi-v26 to be removed")
	}
}
