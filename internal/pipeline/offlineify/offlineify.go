// Package offlineify implements spec.md §4.5.4's HTML offlineify
// sub-pipeline: detecting CDN/remote dependencies in an uploaded HTML
// document and replacing them with locally vendored equivalents so the
// packaged app runs without network access. Only the React and ReactDOM
// unpkg script tags and the Tailwind CDN script are replaced; the Babel
// standalone tag and Google Fonts @imports are dropped; other references
// to the known CDN hosts are left in place.
package offlineify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/buildkite/roko"

	"github.com/vibecoding/demo2apk/internal/cmdexec"
	"github.com/vibecoding/demo2apk/logger"
	"github.com/vibecoding/demo2apk/pool"
)

// knownCDNHosts is the fixed signature table from spec.md §4.5.4: any of
// these substrings appearing in the HTML triggers offlineify.
var knownCDNHosts = []string{
	"cdn.tailwindcss.com",
	"unpkg.com",
	"cdn.jsdelivr.net",
	"cdnjs.cloudflare.com",
	"fonts.googleapis.com",
}

var babelScriptRe = regexp.MustCompile(`(?is)<script[^>]+type=["']text/babel["'][^>]*>(.*?)</script>`)
var googleFontsImportRe = regexp.MustCompile(`(?i)@import\s+url\(['"]?https://fonts\.googleapis\.com[^'")]*['"]?\)\s*;?`)
var tailwindCDNRe = regexp.MustCompile(`(?i)cdn\.tailwindcss\.com`)
var tailwindScriptRe = regexp.MustCompile(`(?i)<script[^>]+src=["'][^"']*cdn\.tailwindcss\.com[^"']*["'][^>]*>\s*</script>`)

// NeedsOfflineify reports whether html matches any of the declared
// signatures: a known CDN host reference, an inline text/babel script
// tag, or a Google Fonts @import.
func NeedsOfflineify(html string) bool {
	for _, host := range knownCDNHosts {
		if strings.Contains(html, host) {
			return true
		}
	}
	if babelScriptRe.MatchString(html) {
		return true
	}
	return googleFontsImportRe.MatchString(html)
}

// rewriteRule maps a recognizable CDN script/link tag fragment to the
// vendored file it should be replaced with.
type rewriteRule struct {
	match       *regexp.Regexp
	vendorFile  string
	sourceURL   string
	replacement string
}

var rewriteRules = []rewriteRule{
	{
		match:       regexp.MustCompile(`(?i)<script[^>]+src=["']https://unpkg\.com/react@[^"']*["'][^>]*></script>`),
		vendorFile:  "react.production.min.js",
		sourceURL:   "https://unpkg.com/react@18/umd/react.production.min.js",
		replacement: `<script src="./vendor/react.production.min.js"></script>`,
	},
	{
		match:       regexp.MustCompile(`(?i)<script[^>]+src=["']https://unpkg\.com/react-dom@[^"']*["'][^>]*></script>`),
		vendorFile:  "react-dom.production.min.js",
		sourceURL:   "https://unpkg.com/react-dom@18/umd/react-dom.production.min.js",
		replacement: `<script src="./vendor/react-dom.production.min.js"></script>`,
	},
}

var babelStandaloneRe = regexp.MustCompile(`(?i)<script[^>]+src=["'][^"']*@babel/standalone[^"']*["'][^>]*></script>\s*`)

// Output describes the substitute directory the main pipeline copies
// in place of the original HTML upload.
type Output struct {
	Dir       string // contains index.html, app.js (optional), vendor/
	HasAppJS  bool
	HasVendor bool
}

// Transformer runs the four offlineify steps.
type Transformer struct {
	Runner     cmdexec.Runner
	HTTPClient *http.Client
	Log        logger.Logger
}

// Run executes the sub-pipeline against the given HTML source, writing
// its output under outDir (which must already exist).
func (t *Transformer) Run(ctx context.Context, html, outDir string) (Output, error) {
	out := Output{Dir: outDir}

	babelSrc, rewritten := extractBabelScript(html)
	if babelSrc != "" {
		js, err := t.compileJSX(ctx, babelSrc)
		if err != nil {
			return out, fmt.Errorf("offlineify: compiling babel script: %w", err)
		}
		if err := os.WriteFile(filepath.Join(outDir, "app.js"), []byte(js), 0o644); err != nil {
			return out, fmt.Errorf("offlineify: writing app.js: %w", err)
		}
		out.HasAppJS = true
	}

	rewritten, neededVendors := applyRewriteTable(rewritten)
	rewritten = babelStandaloneRe.ReplaceAllString(rewritten, "")
	rewritten = googleFontsImportRe.ReplaceAllString(rewritten, "")

	vendorDir := filepath.Join(outDir, "vendor")
	if len(neededVendors) > 0 {
		if err := os.MkdirAll(vendorDir, 0o755); err != nil {
			return out, fmt.Errorf("offlineify: creating vendor dir: %w", err)
		}
		if err := t.fetchVendorFiles(ctx, neededVendors, vendorDir); err != nil {
			return out, err
		}
		out.HasVendor = true
	}

	if tailwindCDNRe.MatchString(html) {
		if err := os.MkdirAll(vendorDir, 0o755); err != nil {
			return out, fmt.Errorf("offlineify: creating vendor dir: %w", err)
		}
		if err := t.runTailwindJIT(ctx, rewritten, html, vendorDir); err != nil {
			return out, err
		}
		rewritten = tailwindScriptRe.ReplaceAllString(rewritten, `<link rel="stylesheet" href="./vendor/tailwind.min.css">`)
		out.HasVendor = true
	}

	if err := os.WriteFile(filepath.Join(outDir, "index.html"), []byte(rewritten), 0o644); err != nil {
		return out, fmt.Errorf("offlineify: writing index.html: %w", err)
	}
	return out, nil
}

func extractBabelScript(html string) (script, rewritten string) {
	m := babelScriptRe.FindStringSubmatchIndex(html)
	if m == nil {
		return "", html
	}
	script = html[m[2]:m[3]]
	rewritten = html[:m[0]] + `<script src="./app.js"></script>` + html[m[1]:]
	return script, rewritten
}

// compileJSX runs a classic, non-dev JSX-to-JS transform over src by
// shelling out to the Babel CLI, the same external-tool-as-opaque-command
// treatment runTailwindJIT gives the Tailwind CLI: write the input to a
// scratch file, invoke the tool, read its output file back.
func (t *Transformer) compileJSX(ctx context.Context, src string) (string, error) {
	scratchDir, err := os.MkdirTemp("", "demo2apk-babel-*")
	if err != nil {
		return "", fmt.Errorf("babel scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	in := filepath.Join(scratchDir, "in.jsx")
	out := filepath.Join(scratchDir, "out.js")
	if err := os.WriteFile(in, []byte(src), 0o644); err != nil {
		return "", fmt.Errorf("writing babel input: %w", err)
	}

	res, err := t.Runner.Run(ctx, t.Log, cmdexec.Command{
		Argv: []string{
			"npx", "--yes", "@babel/cli",
			"--presets", "@babel/preset-react",
			"--no-babelrc",
			"-o", out,
			in,
		},
	})
	if err != nil {
		return "", fmt.Errorf("running babel CLI: %w", err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("babel CLI exited %d: %s", res.ExitCode, res.Output)
	}

	js, err := os.ReadFile(out)
	if err != nil {
		return "", fmt.Errorf("reading babel output: %w", err)
	}
	return string(js), nil
}

func applyRewriteTable(html string) (string, []rewriteRule) {
	var needed []rewriteRule
	for _, rule := range rewriteRules {
		if rule.match.MatchString(html) {
			html = rule.match.ReplaceAllString(html, rule.replacement)
			needed = append(needed, rule)
		}
	}
	return html, needed
}

// fetchVendorFiles downloads each rule's sourceURL into vendorDir in
// parallel, bounded by pool.Pool, failing the whole step on any single
// fetch failure.
func (t *Transformer) fetchVendorFiles(ctx context.Context, rules []rewriteRule, vendorDir string) error {
	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	p := pool.New(4)
	var firstErr error

	for _, rule := range rules {
		rule := rule
		p.Spawn(func() {
			if err := fetchOne(ctx, client, rule.sourceURL, filepath.Join(vendorDir, rule.vendorFile)); err != nil {
				p.Lock()
				if firstErr == nil {
					firstErr = err
				}
				p.Unlock()
			}
		})
	}
	p.Wait()
	return firstErr
}

func fetchOne(ctx context.Context, client *http.Client, url, dest string) error {
	r := roko.NewRetrier(
		roko.WithMaxAttempts(3),
		roko.WithStrategy(roko.Exponential(500*time.Millisecond, 0)),
		roko.WithJitter(),
	)
	_, err := roko.DoFunc(ctx, r, func(*roko.Retrier) (struct{}, error) {
		return struct{}{}, fetchOnceNoRetry(ctx, client, url, dest)
	})
	return err
}

func fetchOnceNoRetry(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("offlineify: building request for %q: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("offlineify: fetching %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("offlineify: fetching %q: status %d", url, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("offlineify: creating %q: %w", dest, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("offlineify: writing %q: %w", dest, err)
	}
	return nil
}

// runTailwindJIT invokes the Tailwind CLI in JIT mode over the rewritten
// HTML, the compiled app.js (if any), and the original HTML, emitting a
// minified stylesheet at <vendorDir>/tailwind.min.css.
func (t *Transformer) runTailwindJIT(ctx context.Context, rewrittenHTML, originalHTML, vendorDir string) error {
	scanDir, err := os.MkdirTemp("", "demo2apk-tailwind-scan-*")
	if err != nil {
		return fmt.Errorf("offlineify: tailwind scan dir: %w", err)
	}
	defer os.RemoveAll(scanDir)

	if err := os.WriteFile(filepath.Join(scanDir, "rewritten.html"), []byte(rewrittenHTML), 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(scanDir, "original.html"), []byte(originalHTML), 0o644); err != nil {
		return err
	}
	if appJS, err := os.ReadFile(filepath.Join(filepath.Dir(vendorDir), "app.js")); err == nil {
		if err := os.WriteFile(filepath.Join(scanDir, "app.js"), appJS, 0o644); err != nil {
			return err
		}
	}

	out := filepath.Join(vendorDir, "tailwind.min.css")
	res, err := t.Runner.Run(ctx, t.Log, cmdexec.Command{
		Argv: []string{"npx", "--yes", "tailwindcss", "-i", "-", "-o", out, "--content", scanDir + "/*.{html,js}", "--minify"},
	})
	if err != nil {
		return fmt.Errorf("offlineify: running tailwind CLI: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("offlineify: tailwind CLI exited %d: %s", res.ExitCode, res.Output)
	}
	return nil
}
