// Package manifest handles scripts.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Manifest represents a scripts.toml script registry: which precompiled
// chunks a game area loads and which native functions its scripts may call.
type Manifest struct {
	Project Project           `toml:"project"`
	Scripts map[string]Script `toml:"scripts"`
	Natives Natives           `toml:"natives"`

	// Dir is the directory containing the scripts.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains registry metadata.
type Project struct {
	Name    string `toml:"name"`
	Area    string `toml:"area"`
	Version string `toml:"version"`
}

// Script describes one registered script: its chunk file and the global
// entry points the engine may invoke on it.
type Script struct {
	Chunk   string   `toml:"chunk"`
	Entries []string `toml:"entries"`
}

// Natives configures the host functions scripts are allowed to dispatch.
type Natives struct {
	Allow []string `toml:"allow"`
}

// Load parses a scripts.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "scripts.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a scripts.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "scripts.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	if m.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	for name, s := range m.Scripts {
		if s.Chunk == "" {
			return fmt.Errorf("script %q has no chunk", name)
		}
		if filepath.IsAbs(s.Chunk) {
			return fmt.Errorf("script %q: chunk path must be relative", name)
		}
	}
	return nil
}

// ChunkPath returns the absolute path of the named script's chunk file.
func (m *Manifest) ChunkPath(name string) (string, error) {
	s, ok := m.Scripts[name]
	if !ok {
		return "", fmt.Errorf("script %q is not in the manifest", name)
	}
	return filepath.Join(m.Dir, s.Chunk), nil
}

// ScriptNames returns the registered script names, sorted.
func (m *Manifest) ScriptNames() []string {
	names := make([]string, 0, len(m.Scripts))
	for name := range m.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NativeAllowed reports whether scripts may dispatch the named host
// function. An empty allow list permits nothing.
func (m *Manifest) NativeAllowed(name string) bool {
	for _, allowed := range m.Natives.Allow {
		if allowed == name {
			return true
		}
	}
	return false
}
