// Package icons implements spec.md §4.5.9's icon injection: resizing a
// source icon to every required Android density with a "contain" fit and
// transparent padding.
package icons

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	_ "image/jpeg"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// Density is one Android mipmap bucket and its square pixel dimension.
type Density struct {
	Name string
	Size int
}

// ShellDensities is the table for the shell-style (HTML) pipeline.
var ShellDensities = []Density{
	{"ldpi", 36}, {"mdpi", 48}, {"hdpi", 72}, {"xhdpi", 96},
	{"xxhdpi", 144}, {"xxxhdpi", 192},
}

// WrapperDensities is the table for the wrapper-style (zip) pipeline.
var WrapperDensities = []Density{
	{"mdpi", 48}, {"hdpi", 72}, {"xhdpi", 96},
	{"xxhdpi", 144}, {"xxxhdpi", 192},
}

// DefaultIcon returns a plain solid-color placeholder icon used when the
// upload carries no custom icon, since this module ships no bundled
// image asset.
func DefaultIcon() image.Image {
	const size = 512
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}}, image.Point{}, draw.Src)
	return img
}

// LoadSource opens and decodes a source icon (PNG or JPEG).
func LoadSource(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("icons: opening %q: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("icons: decoding %q: %w", path, err)
	}
	return img, nil
}

// Resize scales src to fit within a size x size square ("contain" fit),
// padding the remainder with transparent pixels, matching spec.md's
// requirement that aspect ratio be preserved rather than stretched.
func Resize(src image.Image, size int) image.Image {
	bounds := src.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()
	if sw == 0 || sh == 0 {
		return image.NewRGBA(image.Rect(0, 0, size, size))
	}

	scale := float64(size) / float64(sw)
	if s := float64(size) / float64(sh); s < scale {
		scale = s
	}
	dw := int(float64(sw) * scale)
	dh := int(float64(sh) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, xdraw.Over, nil)

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.Transparent}, image.Point{}, draw.Src)

	offsetX := (size - dw) / 2
	offsetY := (size - dh) / 2
	draw.Draw(canvas, image.Rect(offsetX, offsetY, offsetX+dw, offsetY+dh), scaled, image.Point{}, draw.Over)

	return canvas
}

// WritePNG saves img as a maximally-compressed PNG.
func WritePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("icons: creating %q: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("icons: creating %q: %w", path, err)
	}
	defer f.Close()

	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(f, img); err != nil {
		return fmt.Errorf("icons: encoding %q: %w", path, err)
	}
	return nil
}

// InjectShell writes resized icons at every shell density into
// <projectDir>/res/icon/android/<density>.png (the shell-style pipeline's
// convention). If <projectDir>/config.xml exists and has no <icon> entry,
// an android <platform> block with one <icon> per density is inserted
// before its closing </widget> tag.
func InjectShell(src image.Image, projectDir string) error {
	for _, d := range ShellDensities {
		resized := Resize(src, d.Size)
		out := filepath.Join(projectDir, "res", "icon", "android", d.Name+".png")
		if err := WritePNG(resized, out); err != nil {
			return err
		}
	}
	configPath := filepath.Join(projectDir, "config.xml")
	config, err := os.ReadFile(configPath)
	if os.IsNotExist(err) || (err == nil && strings.Contains(string(config), "<icon")) {
		return nil
	} else if err != nil {
		return fmt.Errorf("icons: reading %q: %w", configPath, err)
	}
	entries := "    <platform name=\"android\">\n"
	for _, d := range ShellDensities {
		entries += fmt.Sprintf("        <icon density=\"%s\" src=\"res/icon/android/%s.png\" />\n", d.Name, d.Name)
	}
	entries += "    </platform>\n</widget>"
	updated := strings.Replace(string(config), "</widget>", entries, 1)
	return os.WriteFile(configPath, []byte(updated), 0o644)
}

// InjectWrapper writes ic_launcher.png and ic_launcher_round.png into
// every mipmap-<density> directory, and removes any mipmap-anydpi-v26
// adaptive-icon override per spec.md (adaptive icons crop ~18% from
// edges, which the contain-fit icon is not designed for).
func InjectWrapper(src image.Image, resDir string) error {
	for _, d := range WrapperDensities {
		resized := Resize(src, d.Size)
		dir := filepath.Join(resDir, "mipmap-"+d.Name)
		for _, name := range []string{"ic_launcher.png", "ic_launcher_round.png"} {
			if err := WritePNG(resized, filepath.Join(dir, name)); err != nil {
				return err
			}
		}
	}

	adaptive := filepath.Join(resDir, "mipmap-anydpi-v26")
	if err := os.RemoveAll(adaptive); err != nil {
		return fmt.Errorf("icons: removing %q: %w", adaptive, err)
	}
	return nil
}
