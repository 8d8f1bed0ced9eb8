package autorepair

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNeedsViteProjectFix(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want bool
	}{
		{"missing both", `export default defineConfig({ plugins: [] })`, true},
		{"has base missing legacy", `export default defineConfig({ base: './', plugins: [] })`, true},
		{"has both", `export default defineConfig({ base: './', plugins: [legacy()] })`, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := c.src
			if c.name == "has both" {
				src = `import legacy from '@vitejs/plugin-legacy'` + "\n" + c.src
			}
			if got := NeedsViteProjectFix(src); got != c.want {
				t.Errorf("NeedsViteProjectFix(%q) = %v, want %v", src, got, c.want)
			}
		})
	}
}

func TestRepairViteConfig_InjectsBaseAndLegacyPlugin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vite.config.ts")
	os.WriteFile(path, []byte(`export default defineConfig({ plugins: [] })`), 0o644)

	changes, err := repairViteConfig(path)
	if err != nil {
		t.Fatalf("repairViteConfig: %v", err)
	}
	if len(changes) != 2 || !changes[0].Applied || !changes[1].Applied {
		t.Fatalf("expected two applied changes, got %+v", changes)
	}

	out, _ := os.ReadFile(path)
	if NeedsViteProjectFix(string(out)) {
		t.Fatalf("config still needs fixing after repair: %s", out)
	}
}

func TestRepairViteConfig_NoOpWhenAlreadySatisfied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vite.config.ts")
	src := "import legacy from '@vitejs/plugin-legacy'\nexport default defineConfig({ base: './', plugins: [legacy()] })"
	os.WriteFile(path, []byte(src), 0o644)

	changes, err := repairViteConfig(path)
	if err != nil {
		t.Fatalf("repairViteConfig: %v", err)
	}
	for _, c := range changes {
		if c.Applied {
			t.Fatalf("expected no-op, got applied change %+v", c)
		}
	}
}

func TestRepairImplicitPeerDeps_AddsMissingDependency(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "package.json")
	os.WriteFile(manifestPath, []byte(`{"dependencies":{"recharts":"^2.0.0"}}`), 0o644)

	changes, err := repairImplicitPeerDeps(dir)
	if err != nil {
		t.Fatalf("repairImplicitPeerDeps: %v", err)
	}
	if len(changes) != 1 || changes[0].Detail != "prop-types" {
		t.Fatalf("expected prop-types to be added, got %+v", changes)
	}

	data, _ := os.ReadFile(manifestPath)
	var m manifest
	json.Unmarshal(data, &m)
	if _, ok := m.Dependencies["prop-types"]; !ok {
		t.Fatal("expected prop-types in rewritten manifest")
	}
}

func TestRepairImplicitPeerDeps_NoOpWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "package.json")
	os.WriteFile(manifestPath, []byte(`{"dependencies":{"recharts":"^2.0.0","prop-types":"^15.8.1"}}`), 0o644)

	changes, err := repairImplicitPeerDeps(dir)
	if err != nil {
		t.Fatalf("repairImplicitPeerDeps: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}
