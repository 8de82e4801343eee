package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Prefs persists the active workspace id as a single string key on
// disk, surviving restarts.
type Prefs struct {
	path string
}

// NewPrefs stores under dir, typically ~/.jdc.
func NewPrefs(dir string) *Prefs {
	return &Prefs{path: filepath.Join(dir, "active_workspace")}
}

// ActiveWorkspace returns the stored id, or "" when none is stored.
func (p *Prefs) ActiveWorkspace() (string, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read active workspace: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (p *Prefs) SetActiveWorkspace(id string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create pref dir: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(id+"\n"), 0o644); err != nil {
		return fmt.Errorf("write active workspace: %w", err)
	}
	return nil
}

// Clear discards the stored id, used when the backend reports the
// workspace gone.
func (p *Prefs) Clear() error {
	err := os.Remove(p.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear active workspace: %w", err)
	}
	return nil
}
