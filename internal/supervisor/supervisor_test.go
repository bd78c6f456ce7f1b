package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPruneDeadPids_RemovesNonExistentPIDsAndEmptiesSession(t *testing.T) {
	s := New()
	// Both PIDs are chosen far outside any realistic live process range.
	s.RegisterObservers(42, 999999, 999998)

	pruned := s.PruneDeadPids()
	require.Equal(t, 2, pruned)

	s.mu.Lock()
	_, ok := s.sessions[42]
	s.mu.Unlock()
	require.False(t, ok, "session with no live pids should be removed from the registry")
}

func TestRegisterObservers_UnionAdds(t *testing.T) {
	s := New()
	s.RegisterObservers(1, 100)
	s.RegisterObservers(1, 101)

	s.mu.Lock()
	set := s.sessions[1]
	s.mu.Unlock()
	require.Len(t, set, 2)
}

func TestRegisterObservers_EmptyIsNoop(t *testing.T) {
	s := New()
	s.RegisterObservers(1)

	s.mu.Lock()
	_, ok := s.sessions[1]
	s.mu.Unlock()
	require.False(t, ok)
}

func TestKillSessionObservers_RemovesSessionEvenWithDeadPids(t *testing.T) {
	s := New()
	s.RegisterObservers(7, 999999)

	s.KillSessionObservers(7)

	s.mu.Lock()
	_, ok := s.sessions[7]
	s.mu.Unlock()
	require.False(t, ok)
}

func TestReaper_StartStopIsIdempotent(t *testing.T) {
	s := New()
	r := NewReaper(s, 0)

	r.Start()
	r.Start() // no-op, must not deadlock or panic
	r.Stop()
	r.Stop() // no-op, must not deadlock or panic
}
