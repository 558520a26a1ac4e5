// Package manifest loads and edits parcel.toml package manifests.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is the manifest file looked up in a package directory.
const DefaultFileName = "parcel.toml"

// Manifest is the parsed package manifest.
type Manifest struct {
	Package *Package `toml:"package,omitempty"`
}

// Package is the optional [package] table.
type Package struct {
	Name    string `toml:"name,omitempty"`
	Version string `toml:"version,omitempty"`
	Private bool   `toml:"private,omitempty"`
}

// Load reads the manifest for path. Path may be a directory containing
// parcel.toml or a direct path to a .toml file. It returns the resolved
// manifest path alongside the parsed manifest.
func Load(path string) (string, *Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read package path: %w", err)
	}

	manifestPath := path
	if info.IsDir() {
		manifestPath = filepath.Join(path, DefaultFileName)
	} else if !strings.HasSuffix(path, ".toml") {
		return "", nil, fmt.Errorf("manifest must be a .toml file: %s", path)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return "", nil, fmt.Errorf("failed to parse manifest %s: %w", manifestPath, err)
	}

	return manifestPath, &m, nil
}

// Name returns the namespaced package name, if any.
func (m *Manifest) Name() (string, bool) {
	if m.Package == nil || m.Package.Name == "" {
		return "", false
	}
	return m.Package.Name, true
}

// Private reports the package visibility. A manifest without a [package]
// table is private.
func (m *Manifest) Private() bool {
	if m.Package == nil {
		return true
	}
	return m.Package.Private
}

// Bump increments the patch version in the manifest file at path and
// returns the new version. Only the version value is rewritten; comments,
// unknown keys and other tables keep their original bytes.
func Bump(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("failed to parse manifest: %w", err)
	}

	if m.Package == nil || m.Package.Version == "" {
		return "", fmt.Errorf("manifest %s has no package version to bump", path)
	}

	v, err := semver.NewVersion(m.Package.Version)
	if err != nil {
		return "", fmt.Errorf("invalid package version %q: %w", m.Package.Version, err)
	}

	bumped := v.IncPatch().String()

	out, err := spliceVersion(data, m.Package.Version, bumped)
	if err != nil {
		return "", fmt.Errorf("failed to rewrite manifest %s: %w", path, err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	return bumped, nil
}

// spliceVersion replaces the version value in the [package] table in place,
// leaving every other byte of the manifest untouched.
func spliceVersion(data []byte, from, to string) ([]byte, error) {
	lines := strings.Split(string(data), "\n")
	inPackage := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			inPackage = trimmed == "[package]"
			continue
		}
		if !inPackage {
			continue
		}

		key, _, found := strings.Cut(trimmed, "=")
		if !found || strings.TrimSpace(key) != "version" {
			continue
		}

		eq := strings.Index(line, "=")
		value := strings.Replace(line[eq:], from, to, 1)
		if value == line[eq:] {
			return nil, fmt.Errorf("version %q not found on its own line", from)
		}
		lines[i] = line[:eq] + value
		return []byte(strings.Join(lines, "\n")), nil
	}

	return nil, fmt.Errorf("no version entry in the [package] table")
}
