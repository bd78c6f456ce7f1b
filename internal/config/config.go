package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/memory-service/memoryd/pkg/types"
)

// Load reads settings.json from paths, applying types.DefaultSettings()
// underneath whatever the file (or its absence) provides. The file may be
// JSONC; comments are stripped with tidwall/jsonc before unmarshaling.
func Load(paths *Paths) (*types.Settings, error) {
	settings := types.DefaultSettings()

	data, err := os.ReadFile(paths.SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	clean := jsonc.ToJSON(data)
	if err := json.Unmarshal(clean, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings to paths.SettingsPath(), creating the base directory
// if needed.
func Save(settings *types.Settings, paths *Paths) error {
	if err := os.MkdirAll(filepath.Dir(paths.SettingsPath()), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(paths.SettingsPath(), data, 0o644)
}
