package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// identity is the stable player id kept across runs so a restarted client
// re-attaches to its seat.
type identity struct {
	PlayerID string `yaml:"player_id"`
	Name     string `yaml:"name"`
}

// loadIdentity reads path, creating it with a fresh id when missing.
func loadIdentity(path, name string) (identity, error) {
	var id identity

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &id); err != nil {
			return identity{}, fmt.Errorf("parse identity %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return identity{}, fmt.Errorf("read identity %s: %w", path, err)
	}

	dirty := false
	if id.PlayerID == "" {
		id.PlayerID = uuid.NewString()
		dirty = true
	}
	if name != "" && name != id.Name {
		id.Name = name
		dirty = true
	}
	if id.Name == "" {
		id.Name = "player-" + id.PlayerID[:8]
		dirty = true
	}

	if dirty {
		if err := saveIdentity(path, id); err != nil {
			return identity{}, err
		}
	}
	return id, nil
}

func saveIdentity(path string, id identity) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	data, err := yaml.Marshal(id)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write identity %s: %w", path, err)
	}
	return nil
}
