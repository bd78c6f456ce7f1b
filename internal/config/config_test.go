package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	paths := &Paths{Base: t.TempDir()}
	settings, err := Load(paths)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.Provider != "claude" {
		t.Errorf("Provider = %q, want default claude", settings.Provider)
	}
	if settings.Truncation.MaxContextMessages == 0 {
		t.Errorf("expected default truncation caps to be set")
	}
}

func TestLoadMergesOverSettingsFile(t *testing.T) {
	dir := t.TempDir()
	paths := &Paths{Base: dir}
	content := `{
		// a comment, since settings.json may be JSONC
		"provider": "openrouter",
		"federation": { "maxRemotes": 2 }
	}`
	if err := os.WriteFile(paths.SettingsPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	settings, err := Load(paths)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.Provider != "openrouter" {
		t.Errorf("Provider = %q, want openrouter", settings.Provider)
	}
	if settings.Federation.MaxRemotes != 2 {
		t.Errorf("Federation.MaxRemotes = %d, want 2", settings.Federation.MaxRemotes)
	}
	// Fields absent from the file keep their default.
	if settings.Federation.DecayStrategy != "golden" {
		t.Errorf("Federation.DecayStrategy = %q, want default golden", settings.Federation.DecayStrategy)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := &Paths{Base: filepath.Join(dir, "nested")}

	settings, _ := Load(paths)
	settings.Provider = "gemini"
	if err := Save(settings, paths); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(paths)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if reloaded.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", reloaded.Provider)
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv("CLAUDE_PLUGIN_ROOT", "/tmp/plugin-root-test")
	p := Resolve()
	if p.Base != "/tmp/plugin-root-test" {
		t.Errorf("Base = %q, want env override to win", p.Base)
	}
}
