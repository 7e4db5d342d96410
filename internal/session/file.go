package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nikitkaralius/pollbot/internal/models"
)

// EnsureDir creates the auth state directory if it does not exist yet.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create auth dir %s: %w", dir, err)
	}
	return nil
}

// WriteInfo overwrites path with info as indented JSON. The file is
// replaced atomically so a crash never leaves half a document behind.
func WriteInfo(path string, info models.SessionInfo) error {
	if path == "" {
		return nil
	}
	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session info: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("write session info: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write session info: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session info: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write session info: %w", err)
	}
	return nil
}

// ReadInfo loads a previously written session metadata file.
func ReadInfo(path string) (models.SessionInfo, error) {
	var info models.SessionInfo
	b, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(b, &info); err != nil {
		return info, fmt.Errorf("decode session info: %w", err)
	}
	return info, nil
}
