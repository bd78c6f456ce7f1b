package federation

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/memory-service/memoryd/internal/logging"
	"github.com/memory-service/memoryd/pkg/types"
)

// gitattributesBody tracks the embedded vector store as a large binary,
// matching spec.md §4.F's requirement that a snapshot not bloat plain git
// diffs.
const gitattributesBody = "vectors.db filter=lfs diff=lfs merge=lfs -text\n*.db binary\n"

// ExportMetadata is written alongside a snapshot so a peer (or a later
// migration run) knows what produced it.
type ExportMetadata struct {
	Project         string `json:"project"`
	ExportedAtEpoch int64  `json:"exportedAtEpoch"`
	VectorBackend   string `json:"vectorBackend"`
	IncludesVectors bool   `json:"includesVectors"`
}

// Exporter snapshots the embedded store into a git-managed replication
// directory and pushes it to the configured remote, generalizing the
// teacher's branch-watcher git plumbing (exec.Command("git", ...)) to an
// init/add/commit/push workflow instead of a rev-parse/branch poll.
type Exporter struct {
	replicationDir string
	cfg            types.ReplicationConfig
}

// NewExporter builds an Exporter writing snapshots under replicationDir.
func NewExporter(replicationDir string, cfg types.ReplicationConfig) *Exporter {
	return &Exporter{replicationDir: replicationDir, cfg: cfg}
}

// EnsureInitialized makes replicationDir a git repository with a remote
// configured, if it is not one already. Safe to call repeatedly.
func (e *Exporter) EnsureInitialized(remoteURL string) error {
	if err := os.MkdirAll(e.replicationDir, 0o755); err != nil {
		return fmt.Errorf("create replication dir: %w", err)
	}

	if !e.isGitRepo() {
		if err := e.git("init"); err != nil {
			return fmt.Errorf("git init: %w", err)
		}
	}

	attrPath := filepath.Join(e.replicationDir, ".gitattributes")
	if _, err := os.Stat(attrPath); os.IsNotExist(err) {
		if err := os.WriteFile(attrPath, []byte(gitattributesBody), 0o644); err != nil {
			return fmt.Errorf("write gitattributes: %w", err)
		}
	}

	if remoteURL != "" {
		remoteName := e.remoteName()
		if err := e.git("remote", "get-url", remoteName); err != nil {
			if err := e.git("remote", "add", remoteName, remoteURL); err != nil {
				return fmt.Errorf("git remote add: %w", err)
			}
		}
	}
	return nil
}

// Snapshot copies the embedded vector database at storePath into the
// replication directory as vectors.db (or, when noVectors is set, copies
// nothing and removes any earlier vectors.db), writes metadata.json, and
// commits the result. It does not push; call Push separately, or rely on
// shouldAutoPush driving an idle-triggered push.
func (e *Exporter) Snapshot(storePath, project string, noVectors bool) error {
	if err := e.EnsureInitialized(""); err != nil {
		return err
	}

	dest := filepath.Join(e.replicationDir, "vectors.db")
	if noVectors {
		_ = os.Remove(dest)
	} else if err := copyFile(storePath, dest); err != nil {
		return fmt.Errorf("snapshot vector store: %w", err)
	}

	meta := ExportMetadata{
		Project:         project,
		ExportedAtEpoch: time.Now().UnixMilli(),
		VectorBackend:   "sqlite-vec",
		IncludesVectors: !noVectors,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(e.replicationDir, "metadata.json"), metaBytes, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := e.git("add", "-A"); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	msg := fmt.Sprintf("snapshot %s at %s", project, time.Now().UTC().Format(time.RFC3339))
	if err := e.git("commit", "-m", msg); err != nil {
		// An empty commit (nothing changed since last snapshot) is not an error.
		if strings.Contains(err.Error(), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// Push pushes the replication directory's current branch to its remote.
func (e *Exporter) Push(full bool) error {
	remoteName := e.remoteName()
	args := []string{"push", remoteName}
	if full {
		args = append(args, "--all")
	} else {
		args = append(args, "HEAD")
	}
	if err := e.git(args...); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// Pull fetches and fast-forwards the replication directory from its remote.
func (e *Exporter) Pull() error {
	if err := e.git("pull", "--ff-only", e.remoteName()); err != nil {
		return fmt.Errorf("git pull: %w", err)
	}
	return nil
}

// Status reports whether the replication directory is initialized, its
// remote URL, whether it has uncommitted changes, and its current branch.
// Unpushed commits are not reflected in Dirty.
type Status struct {
	Initialized bool   `json:"initialized"`
	RemoteURL   string `json:"remoteUrl,omitempty"`
	Dirty       bool   `json:"dirty"`
	Branch      string `json:"branch,omitempty"`
}

// Status inspects the replication directory's current git state.
func (e *Exporter) Status() Status {
	if !e.isGitRepo() {
		return Status{}
	}
	st := Status{Initialized: true}
	if out, err := e.output("remote", "get-url", e.remoteName()); err == nil {
		st.RemoteURL = strings.TrimSpace(out)
	}
	if out, err := e.output("status", "--porcelain"); err == nil {
		st.Dirty = strings.TrimSpace(out) != ""
	}
	if out, err := e.output("rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		st.Branch = strings.TrimSpace(out)
	}
	return st
}

// ShouldAutoPush reports whether auto-push is enabled, there are pending
// local changes (uncommitted or unpushed), and the configured idle interval
// has elapsed since lastActivity, per spec.md §4.F's idle-push policy.
func (e *Exporter) ShouldAutoPush(lastActivity time.Time) bool {
	if !e.cfg.AutoPush {
		return false
	}
	if !e.hasPendingChanges() {
		return false
	}
	idle := e.cfg.IdlePushSeconds
	if idle <= 0 {
		idle = 300
	}
	return time.Since(lastActivity) >= time.Duration(idle)*time.Second
}

// hasPendingChanges reports whether the replication directory has
// uncommitted changes, or (when a remote is configured) committed changes
// not yet pushed to it. With no remote configured there is nowhere to push
// to, so only the working tree's dirty state is considered.
func (e *Exporter) hasPendingChanges() bool {
	if !e.isGitRepo() {
		return false
	}
	if e.Status().Dirty {
		return true
	}
	if _, err := e.output("remote", "get-url", e.remoteName()); err != nil {
		return false
	}
	out, err := e.output("rev-list", e.remoteName()+"/"+"HEAD..HEAD", "--count")
	if err != nil {
		// Upstream branch not yet known locally (never fetched/pushed):
		// any local commit is unpushed.
		out, err = e.output("rev-list", "HEAD", "--count")
		if err != nil {
			return false
		}
	}
	return strings.TrimSpace(out) != "" && strings.TrimSpace(out) != "0"
}

func (e *Exporter) remoteName() string {
	if e.cfg.RemoteName != "" {
		return e.cfg.RemoteName
	}
	return "origin"
}

func (e *Exporter) isGitRepo() bool {
	_, err := os.Stat(filepath.Join(e.replicationDir, ".git"))
	return err == nil
}

func (e *Exporter) git(args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = e.replicationDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		logging.Debug().Str("args", strings.Join(args, " ")).Str("output", string(out)).Msg("git command failed")
		return fmt.Errorf("%s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (e *Exporter) output(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = e.replicationDir
	out, err := cmd.Output()
	return string(out), err
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
