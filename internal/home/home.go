package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the papercheck home directory.
	DefaultDirName = ".papercheck"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// CatalogFileName is the default knowledge catalog file name.
	CatalogFileName = "knowledge.yaml"
)

// Dir represents the papercheck home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.papercheck).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CatalogPath returns the path to the knowledge catalog written by
// "papercheck config init --catalog".
func (d *Dir) CatalogPath() string {
	return filepath.Join(d.path, CatalogFileName)
}

// EnsureExists creates the home directory if it doesn't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("failed to create home directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// ConfigFile picks the config to load: an explicit path wins, then the home
// directory's config.yaml. Empty means search the default locations.
func (d *Dir) ConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if d.ConfigExists() {
		return d.ConfigPath()
	}
	return ""
}
