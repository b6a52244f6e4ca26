package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// commandCache remembers, per guild, the hash of every command definition
// last sent to Discord so unchanged commands are not re-registered.
type commandCache struct {
	dir string
}

func (c commandCache) path(guildID string) string {
	return filepath.Join(c.dir, guildID+".json")
}

func (c commandCache) load(guildID string) (map[string]string, error) {
	hashes := make(map[string]string)
	data, err := os.ReadFile(c.path(guildID))
	if errors.Is(err, os.ErrNotExist) {
		return hashes, nil
	}
	if err != nil {
		return hashes, err
	}
	if err := json.Unmarshal(data, &hashes); err != nil {
		return make(map[string]string), fmt.Errorf("decode command cache: %w", err)
	}
	return hashes, nil
}

func (c commandCache) save(guildID string, hashes map[string]string) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(guildID), data, 0o644)
}
