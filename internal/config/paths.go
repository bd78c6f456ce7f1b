// Package config resolves the on-disk location of the worker's persisted
// state and loads/saves its settings file.
package config

import (
	"os"
	"path/filepath"
)

// Paths holds the resolved locations of the worker's persisted state,
// rooted at the directory spec.md §6 calls the "base directory".
//
// Resolution order (first existing location wins), per spec.md §6:
//  1. CLAUDE_PLUGIN_ROOT environment variable, if set.
//  2. A standalone directory under the user's home: ~/.memory-service.
//  3. A marketplace-managed directory, if present.
type Paths struct {
	Base string
}

const (
	standaloneDirName  = ".memory-service"
	marketplaceDirName = ".claude/plugins/memory-service"
)

// Resolve determines the base directory using the precedence chain above.
func Resolve() *Paths {
	if root := os.Getenv("CLAUDE_PLUGIN_ROOT"); root != "" {
		return &Paths{Base: root}
	}

	home, _ := os.UserHomeDir()
	standalone := filepath.Join(home, standaloneDirName)
	if _, err := os.Stat(standalone); err == nil {
		return &Paths{Base: standalone}
	}

	marketplace := filepath.Join(home, marketplaceDirName)
	if _, err := os.Stat(marketplace); err == nil {
		return &Paths{Base: marketplace}
	}

	// Nothing exists yet: default to the standalone location and let the
	// caller create it.
	return &Paths{Base: standalone}
}

// EnsureBase creates the base directory and its logs/ subdirectory.
func (p *Paths) EnsureBase() error {
	if err := os.MkdirAll(p.Base, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(p.LogsDir(), 0o755)
}

// StorePath is the relational store file, per spec.md §6's layout.
func (p *Paths) StorePath() string { return filepath.Join(p.Base, "claude-mem.db") }

// VectorDBPath is the embedded vector store file (used when
// vectorBackend=sqlite-vec).
func (p *Paths) VectorDBPath() string { return filepath.Join(p.Base, "vectors.db") }

// VectorDataDir is the collection-service data directory (used when
// vectorBackend=chroma).
func (p *Paths) VectorDataDir() string { return filepath.Join(p.Base, "vector-db") }

// ExportDir is the replication workspace.
func (p *Paths) ExportDir() string { return filepath.Join(p.Base, "export") }

// SettingsPath is the user settings file.
func (p *Paths) SettingsPath() string { return filepath.Join(p.Base, "settings.json") }

// LogsDir is the directory log files are written under.
func (p *Paths) LogsDir() string { return filepath.Join(p.Base, "logs") }
