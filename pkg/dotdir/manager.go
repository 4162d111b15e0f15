// Package dotdir resolves the .formu/ directory that holds formu's local
// state: config.toml, read by the config layer, and last_prompt.json, written
// by "formu prompt" and read back by "formu restyle".
//
// A project-local ./.formu/ wins over the per-user ~/.formu/, so a repository
// can pin its own backend and prompt style.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".formu"

	// ConfigFile is the TOML configuration file name.
	ConfigFile = "config.toml"

	// LastPromptFile is the saved prompt file name.
	LastPromptFile = "last_prompt.json"
)

// Manager resolves paths inside the .formu/ directory.
type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .formu/ directory to use, creating
// it if needed. The override wins, then ./.formu/ in the working directory,
// then ~/.formu/.
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir
	if dir == "" {
		var err error
		if dir, err = m.defaultDir(); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating formu directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// File returns the absolute path of name inside the resolved .formu/
// directory. The file itself may not exist yet.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) defaultDir() (string, error) {
	if local, ok := m.localDir(); ok {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// localDir returns ./.formu/ when it exists as a directory.
func (m *Manager) localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	local := filepath.Join(cwd, dirName)
	info, err := os.Stat(local)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return local, true
}
