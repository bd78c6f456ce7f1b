package federation

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memory-service/memoryd/pkg/types"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(out))
}

func newTestReplicationDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "federation-export-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestEnsureInitialized_CreatesRepoAndGitattributes(t *testing.T) {
	dir := newTestReplicationDir(t)
	e := NewExporter(dir, types.ReplicationConfig{})

	require.NoError(t, e.EnsureInitialized(""))
	require.DirExists(t, filepath.Join(dir, ".git"))
	require.FileExists(t, filepath.Join(dir, ".gitattributes"))

	// Calling again is a no-op, not an error.
	require.NoError(t, e.EnsureInitialized(""))
}

func TestSnapshot_WritesMetadataAndCommits(t *testing.T) {
	dir := newTestReplicationDir(t)
	runGit(t, dir, "init", "-b", "main")
	// Avoid depending on an ambient git identity in the test environment.
	e := NewExporter(dir, types.ReplicationConfig{})
	require.NoError(t, e.EnsureInitialized(""))
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")

	storeFile := filepath.Join(dir, "source.db")
	require.NoError(t, os.WriteFile(storeFile, []byte("fake sqlite bytes"), 0o644))

	require.NoError(t, e.Snapshot(storeFile, "memoryd", false))

	require.FileExists(t, filepath.Join(dir, "vectors.db"))
	require.FileExists(t, filepath.Join(dir, "metadata.json"))

	st := e.Status()
	assert.True(t, st.Initialized)
	assert.False(t, st.Dirty, "snapshot should have committed everything")
}

func TestSnapshot_NoVectorsOmitsDBFile(t *testing.T) {
	dir := newTestReplicationDir(t)
	runGit(t, dir, "init", "-b", "main")
	e := NewExporter(dir, types.ReplicationConfig{})
	require.NoError(t, e.EnsureInitialized(""))
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")

	storeFile := filepath.Join(dir, "source.db")
	require.NoError(t, os.WriteFile(storeFile, []byte("fake sqlite bytes"), 0o644))

	require.NoError(t, e.Snapshot(storeFile, "memoryd", true))
	require.NoFileExists(t, filepath.Join(dir, "vectors.db"))
}

func TestShouldAutoPush_FalseWhenDisabled(t *testing.T) {
	e := NewExporter(newTestReplicationDir(t), types.ReplicationConfig{AutoPush: false})
	assert.False(t, e.ShouldAutoPush(time.Now().Add(-time.Hour)))
}

func TestShouldAutoPush_FalseWithoutPendingChanges(t *testing.T) {
	dir := newTestReplicationDir(t)
	e := NewExporter(dir, types.ReplicationConfig{AutoPush: true, IdlePushSeconds: 1})
	require.NoError(t, e.EnsureInitialized(""))
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "init")

	assert.False(t, e.ShouldAutoPush(time.Now().Add(-time.Hour)), "a clean, fully-committed repo has nothing to push")
}

func TestShouldAutoPush_TrueWhenIdleWithUncommittedChanges(t *testing.T) {
	dir := newTestReplicationDir(t)
	e := NewExporter(dir, types.ReplicationConfig{AutoPush: true, IdlePushSeconds: 1})
	require.NoError(t, e.EnsureInitialized(""))
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "-m", "init")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))

	assert.True(t, e.ShouldAutoPush(time.Now().Add(-time.Hour)))
	assert.False(t, e.ShouldAutoPush(time.Now()), "not idle long enough yet")
}
