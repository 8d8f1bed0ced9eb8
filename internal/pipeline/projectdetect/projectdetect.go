// Package projectdetect implements spec.md §4.5.7's heuristics for
// classifying an extracted front-end project and picking the package
// manager to drive it.
package projectdetect

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type ProjectType string

const (
	TypeBundlerBased    ProjectType = "bundler-based"
	TypeFrameworkStatic ProjectType = "framework-static"
	TypeToolingManaged  ProjectType = "tooling-managed"
	TypeUnknown         ProjectType = "unknown"
)

type PackageManager string

const (
	PackageManagerPNPM PackageManager = "pnpm"
	PackageManagerYarn PackageManager = "yarn"
	PackageManagerNPM  PackageManager = "npm"
)

// Detection is the outcome of scanning a project root.
type Detection struct {
	Type           ProjectType
	OutputDir      string
	PackageManager PackageManager
}

var viteConfigs = []string{"vite.config.js", "vite.config.ts", "vite.config.mts", "vite.config.mjs"}
var nextConfigs = []string{"next.config.js", "next.config.ts", "next.config.mjs"}

// Detect classifies the project at root.
func Detect(root string) Detection {
	d := Detection{Type: TypeUnknown, OutputDir: "dist", PackageManager: detectPackageManager(root)}

	if anyExists(root, viteConfigs) {
		d.Type = TypeBundlerBased
		d.OutputDir = "dist"
		return d
	}
	if anyExists(root, nextConfigs) {
		d.Type = TypeFrameworkStatic
		d.OutputDir = "out"
		return d
	}
	if hasReactScripts(root) {
		d.Type = TypeToolingManaged
		d.OutputDir = "build"
		return d
	}
	return d
}

func anyExists(root string, names []string) bool {
	for _, name := range names {
		if fileExists(filepath.Join(root, name)) {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type packageManifest struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func hasReactScripts(root string) bool {
	m, err := readManifest(root)
	if err != nil {
		return false
	}
	if _, ok := m.Dependencies["react-scripts"]; ok {
		return true
	}
	_, ok := m.DevDependencies["react-scripts"]
	return ok
}

func readManifest(root string) (packageManifest, error) {
	var m packageManifest
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

// detectPackageManager prefers pnpm, then yarn, falling back to npm,
// based on lockfile presence as spec.md §4.5.7 describes. Whether the
// tool is actually installed is the caller's concern (a missing binary
// surfaces as a ToolchainError when invoked).
func detectPackageManager(root string) PackageManager {
	if fileExists(filepath.Join(root, "pnpm-lock.yaml")) {
		return PackageManagerPNPM
	}
	if fileExists(filepath.Join(root, "yarn.lock")) {
		return PackageManagerYarn
	}
	return PackageManagerNPM
}
