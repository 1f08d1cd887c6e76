// Package project holds the build model that generated sources are registered
// into. Other tools read the model to find the directories they must compile.
package project

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const ModelFilename = "jxrun_project.json"

type Model struct {
	mu sync.Mutex
	// directory the model file lives in, usually the build directory
	basePath string

	Name        string   `json:"name,omitempty"`
	SourceRoots []string `json:"sourceRoots"`
}

func ParseModel(rdr io.Reader, basePath string) (*Model, error) {
	m := &Model{basePath: basePath}
	if err := json.NewDecoder(bufio.NewReader(rdr)).Decode(m); err != nil {
		return nil, err
	}
	return m, nil
}

func ParseModelInPath(basePath string) (*Model, error) {
	f, err := os.Open(filepath.Join(basePath, ModelFilename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseModel(f, basePath)
}

// Load reads the model in basePath, or returns an empty one if there is none yet.
func Load(basePath, name string) (*Model, error) {
	m, err := ParseModelInPath(basePath)
	if errors.Is(err, os.ErrNotExist) {
		return &Model{basePath: basePath, Name: name, SourceRoots: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if name != "" {
		m.Name = name
	}
	return m, nil
}

func (m *Model) Path() string {
	return filepath.Join(m.basePath, ModelFilename)
}

func (m *Model) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save()
}

func (m *Model) save() error {
	if err := os.MkdirAll(m.basePath, 0755); err != nil {
		return err
	}
	f, err := os.Create(m.Path())
	if err != nil {
		return err
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return err
	}
	return bufw.Flush()
}

// AddSourceRoot registers dir as a compile source root and saves the model.
// A root that is already registered is left alone.
func (m *Model) AddSourceRoot(dir string) error {
	dir = filepath.Clean(dir)

	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.SourceRoots, dir) {
		return nil
	}
	prev := m.SourceRoots
	m.SourceRoots = append(slices.Clip(prev), dir)
	if err := m.save(); err != nil {
		// not on disk, so not registered
		m.SourceRoots = prev
		return err
	}
	return nil
}

func (m *Model) HasSourceRoot(dir string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.SourceRoots, filepath.Clean(dir))
}

// RemoveSourceRoot drops dir from the model. It reports whether dir was
// registered; the caller saves.
func (m *Model) RemoveSourceRoot(dir string) bool {
	dir = filepath.Clean(dir)

	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.Index(m.SourceRoots, dir)
	if i < 0 {
		return false
	}
	m.SourceRoots = slices.Delete(m.SourceRoots, i, i+1)
	return true
}

func (m *Model) Roots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.SourceRoots)
}
