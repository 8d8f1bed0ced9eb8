// Package autorepair implements spec.md §4.5.8's front-end project
// auto-repair: a set of idempotent patches applied to a bundler-based
// project before install, to maximize success on older Android webviews
// and fix common mistakes in AI-generated projects.
package autorepair

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// implicitPeerDeps is the known table from spec.md §4.5.8: packages that
// commonly omit a declared dependency they actually need at runtime.
var implicitPeerDeps = map[string]map[string]string{
	"recharts": {"prop-types": "^15.8.1"},
	"echarts-for-react": {"echarts": "^5.5.0"},
}

// watchListImports are bare specifiers that, if imported but neither
// installed nor a Node builtin nor relative, get added automatically.
var watchListImports = map[string]string{
	"classnames":      "^2.5.1",
	"clsx":            "^2.1.1",
	"lodash":          "^4.17.21",
	"dayjs":           "^1.11.11",
	"uuid":            "^9.0.1",
}

var nodeBuiltins = map[string]bool{
	"fs": true, "path": true, "os": true, "crypto": true, "util": true,
	"events": true, "stream": true, "http": true, "https": true, "url": true,
}

// Change records one applied (or skipped) repair for status reporting.
type Change struct {
	Name    string
	Applied bool
	Detail  string
}

type manifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// NeedsViteProjectFix reports whether a vite.config source is missing a
// `base` setting or the legacy-targets plugin, per spec.md §8 property 9.
func NeedsViteProjectFix(viteConfigSrc string) bool {
	return !hasBaseSetting(viteConfigSrc) || !hasLegacyPlugin(viteConfigSrc)
}

func hasBaseSetting(src string) bool {
	return regexp.MustCompile(`base\s*:\s*['"]`).MatchString(src)
}

func hasLegacyPlugin(src string) bool {
	return strings.Contains(src, "@vitejs/plugin-legacy")
}

// Repair applies every applicable patch under root and returns the list
// of changes made (and skipped, for status reporting).
func Repair(root string) ([]Change, error) {
	var changes []Change

	viteConfigPath := findViteConfig(root)
	if viteConfigPath != "" {
		c, err := repairViteConfig(viteConfigPath)
		if err != nil {
			return changes, err
		}
		changes = append(changes, c...)
	}

	c, err := repairEntryCSS(root)
	if err != nil {
		return changes, err
	}
	changes = append(changes, c...)

	c, err = repairTailwindScaffold(root)
	if err != nil {
		return changes, err
	}
	changes = append(changes, c...)

	c, err = repairImplicitPeerDeps(root)
	if err != nil {
		return changes, err
	}
	changes = append(changes, c...)

	return changes, nil
}

func findViteConfig(root string) string {
	for _, name := range []string{"vite.config.ts", "vite.config.js", "vite.config.mts", "vite.config.mjs"} {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func repairViteConfig(path string) ([]Change, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("autorepair: reading %q: %w", path, err)
	}
	src := string(data)
	var changes []Change

	if hasBaseSetting(src) {
		changes = append(changes, Change{Name: "relative-base-path", Applied: false, Detail: "base already set"})
	} else {
		src = injectBaseSetting(src)
		changes = append(changes, Change{Name: "relative-base-path", Applied: true})
	}

	if hasLegacyPlugin(src) {
		changes = append(changes, Change{Name: "legacy-transpilation-plugin", Applied: false, Detail: "already configured"})
	} else {
		src = injectLegacyPlugin(src)
		changes = append(changes, Change{Name: "legacy-transpilation-plugin", Applied: true})
	}

	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		return changes, fmt.Errorf("autorepair: writing %q: %w", path, err)
	}
	return changes, nil
}

var defineConfigRe = regexp.MustCompile(`defineConfig\(\s*\{`)

func injectBaseSetting(src string) string {
	if loc := defineConfigRe.FindStringIndex(src); loc != nil {
		return src[:loc[1]] + "\n  base: './',\n" + src[loc[1]:]
	}
	return "export default { base: './',\n" + src
}

func injectLegacyPlugin(src string) string {
	importLine := `import legacy from '@vitejs/plugin-legacy'` + "\n"
	pluginCall := `legacy({ targets: ['chrome >= 52', 'android >= 5'] })`

	if loc := defineConfigRe.FindStringIndex(src); loc != nil {
		src = src[:loc[1]] + "\n  plugins: [" + pluginCall + "],\n" + src[loc[1]:]
	}
	return importLine + src
}

func repairEntryCSS(root string) ([]Change, error) {
	indexHTML := filepath.Join(root, "index.html")
	htmlData, err := os.ReadFile(indexHTML)
	if err != nil {
		return nil, nil // no index.html, nothing to repair here
	}
	if !strings.Contains(string(htmlData), "index.css") {
		return nil, nil
	}

	cssPath := filepath.Join(root, "src", "index.css")
	if _, err := os.Stat(cssPath); err == nil {
		return []Change{{Name: "entry-css", Applied: false, Detail: "index.css already exists"}}, nil
	}

	var body strings.Builder
	if usesTailwind(root) {
		body.WriteString("@tailwind base;\n@tailwind components;\n@tailwind utilities;\n\n")
	}
	body.WriteString("html, body, #root { height: 100%; width: 100%; margin: 0; padding: 0; }\n")

	if err := os.MkdirAll(filepath.Dir(cssPath), 0o755); err != nil {
		return nil, fmt.Errorf("autorepair: creating src dir: %w", err)
	}
	if err := os.WriteFile(cssPath, []byte(body.String()), 0o644); err != nil {
		return nil, fmt.Errorf("autorepair: writing %q: %w", cssPath, err)
	}
	return []Change{{Name: "entry-css", Applied: true}}, nil
}

func usesTailwind(root string) bool {
	for _, name := range []string{"tailwind.config.js", "tailwind.config.ts", "tailwind.config.cjs"} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return true
		}
	}
	return false
}

func repairTailwindScaffold(root string) ([]Change, error) {
	if usesTailwind(root) {
		return nil, nil
	}
	if !sourceReferencesTailwindClasses(root) {
		return nil, nil
	}

	configPath := filepath.Join(root, "tailwind.config.js")
	config := `/** @type {import('tailwindcss').Config} */
module.exports = {
  content: ["./index.html", "./src/**/*.{js,ts,jsx,tsx}"],
  theme: { extend: {} },
  plugins: [],
}
`
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		return nil, fmt.Errorf("autorepair: writing tailwind.config.js: %w", err)
	}

	postcssPath := filepath.Join(root, "postcss.config.js")
	postcss := `module.exports = { plugins: { tailwindcss: {}, autoprefixer: {} } }
`
	if err := os.WriteFile(postcssPath, []byte(postcss), 0o644); err != nil {
		return nil, fmt.Errorf("autorepair: writing postcss.config.js: %w", err)
	}

	return []Change{{Name: "tailwind-scaffold", Applied: true}}, nil
}

var tailwindClassRe = regexp.MustCompile(`class(Name)?=["'][^"']*\b(flex|grid|text-|bg-|p-\d|m-\d)`)

func sourceReferencesTailwindClasses(root string) bool {
	found := false
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || found {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".js" && ext != ".jsx" && ext != ".ts" && ext != ".tsx" && ext != ".html" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err == nil && tailwindClassRe.Match(data) {
			found = true
		}
		return nil
	})
	return found
}

func repairImplicitPeerDeps(root string) ([]Change, error) {
	manifestPath := filepath.Join(root, "package.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, nil
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("autorepair: parsing package.json: %w", err)
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}

	var changes []Change
	dirty := false

	for pkg := range m.Dependencies {
		if missing, ok := implicitPeerDeps[pkg]; ok {
			for dep, version := range missing {
				if _, already := m.Dependencies[dep]; already {
					continue
				}
				m.Dependencies[dep] = version
				dirty = true
				changes = append(changes, Change{Name: "implicit-peer-dependency", Applied: true, Detail: dep})
			}
		}
	}

	for spec, version := range scanWatchListImports(root) {
		if _, already := m.Dependencies[spec]; already {
			continue
		}
		m.Dependencies[spec] = version
		dirty = true
		changes = append(changes, Change{Name: "implicit-import-dependency", Applied: true, Detail: spec})
	}

	if !dirty {
		return changes, nil
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return changes, err
	}
	if err := os.WriteFile(manifestPath, out, 0o644); err != nil {
		return changes, fmt.Errorf("autorepair: writing package.json: %w", err)
	}
	return changes, nil
}

var importSpecifierRe = regexp.MustCompile(`(?:import\s+.*?from\s+|require\()\s*['"]([^'"./][^'"]*)['"]`)

func scanWatchListImports(root string) map[string]string {
	found := map[string]string{}
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".js" && ext != ".jsx" && ext != ".ts" && ext != ".tsx" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for _, m := range importSpecifierRe.FindAllStringSubmatch(string(data), -1) {
			spec := rootPackageName(m[1])
			if nodeBuiltins[spec] {
				continue
			}
			if version, ok := watchListImports[spec]; ok {
				found[spec] = version
			}
		}
		return nil
	})
	return found
}

func rootPackageName(spec string) string {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return spec
	}
	return strings.SplitN(spec, "/", 2)[0]
}
