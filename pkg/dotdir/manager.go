// Package dotdir resolves the .voxtap/ directory holding config.toml, the
// .env file and the default SQLite export archive.
package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the voxtap directory.
	DirName = ".voxtap"

	archiveFile = "voxtap.sqlite"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path to a .voxtap/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.voxtap/ dir
//  3. Home ~/.voxtap/ dir
//
// If none exists an empty string is returned.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating voxtap directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, DirName); isDir(local) {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if dir := filepath.Join(home, DirName); isDir(dir) {
		return dir, nil
	}

	return "", nil
}

// Ensure behaves like Target but creates ~/.voxtap/ when no directory was
// found.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir = filepath.Join(home, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating voxtap directory %s: %w", dir, err)
	}
	return dir, nil
}

// ArchivePath returns the default SQLite archive path inside dir.
func ArchivePath(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("no voxtap directory")
	}
	return filepath.Join(dir, archiveFile), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
