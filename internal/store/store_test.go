package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memory-service/memoryd/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateSession_IdempotentOnContentSessionID(t *testing.T) {
	s := openTestStore(t)

	a, err := s.CreateSession("content-1", "memoryd", "fix the bug")
	require.NoError(t, err)
	b, err := s.CreateSession("content-1", "memoryd", "fix the bug")
	require.NoError(t, err)

	require.Equal(t, a.ID, b.ID)

	sessions, err := s.ListSessions("memoryd")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestUpdateMemorySessionID_OnceOnly(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateSession("content-1", "memoryd", "")
	require.NoError(t, err)

	require.NoError(t, s.UpdateMemorySessionID(sess.ID, "mem-1"))
	require.NoError(t, s.UpdateMemorySessionID(sess.ID, "mem-1")) // same value: no-op

	err = s.UpdateMemorySessionID(sess.ID, "mem-2")
	require.ErrorIs(t, err, ErrMemorySessionIDAlreadySet)

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.Equal(t, "mem-1", *got.MemorySessionID)
}

func TestStoreObservations_DedupOnCompositeKey(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateSession("content-1", "memoryd", "")
	require.NoError(t, err)

	obs := &types.Observation{
		Title:          "Found the race condition",
		Narrative:      "details",
		CreatedAtEpoch: 1700000000000,
	}

	results, err := s.StoreObservations(sess.ID, "mem-1", "memoryd", []*types.Observation{obs})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Imported)
	firstID := results[0].Observation.ID

	// Same (memory_session_id, title, created_at_epoch) again: collides.
	results, err = s.StoreObservations(sess.ID, "mem-1", "memoryd", []*types.Observation{obs})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].Imported)
	require.Equal(t, firstID, results[0].Observation.ID)

	rows, err := s.ListSessions("memoryd")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestPendingQueue_EnqueueOrderAndProcessedOnce(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateSession("content-1", "memoryd", "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := s.EnqueueObservationMessage(sess.ID, "Read", nil, nil, i, "/tmp")
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var seen []int
	for msg := range s.IteratePending(ctx, sess.ID) {
		seen = append(seen, msg.PromptNumber)
		require.NoError(t, s.MarkProcessed(msg.ID))
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, seen)

	// A second pass over the same session yields nothing further.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	var again []int
	for msg := range s.IteratePending(ctx2, sess.ID) {
		again = append(again, msg.PromptNumber)
	}
	require.Empty(t, again)
}

func TestResetStuckMessages_ResurrectsInFlightRows(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateSession("content-1", "memoryd", "")
	require.NoError(t, err)

	_, err = s.EnqueueObservationMessage(sess.ID, "Read", nil, nil, 0, "/tmp")
	require.NoError(t, err)

	// Simulate a worker crash mid-consume: claim the row but never mark it
	// processed.
	msg, err := s.claimNextPending(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, msg)

	pending, err := s.HasPending(sess.ID)
	require.NoError(t, err)
	require.False(t, pending, "claimed row should be in_flight, not pending")

	n, err := s.ResetStuckMessages()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	pending, err = s.HasPending(sess.ID)
	require.NoError(t, err)
	require.True(t, pending, "resurrected row should be pending again")
}

func TestSearchByText_FindsSubstringMatches(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateSession("content-1", "memoryd", "")
	require.NoError(t, err)

	_, err = s.StoreObservations(sess.ID, "mem-1", "memoryd", []*types.Observation{
		{Title: "Found the dedup guard race", CreatedAtEpoch: 1},
		{Title: "Unrelated formatting change", CreatedAtEpoch: 2},
	})
	require.NoError(t, err)

	results, err := s.SearchByText("dedup guard", "memoryd", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Title, "dedup guard")
}

func TestGetTimeline_ReturnsAnchorWithRadius(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateSession("content-1", "memoryd", "")
	require.NoError(t, err)

	var ids []int64
	for i := int64(0); i < 5; i++ {
		res, err := s.StoreObservations(sess.ID, "mem-1", "memoryd", []*types.Observation{
			{Title: "obs", CreatedAtEpoch: 1000 + i},
		})
		require.NoError(t, err)
		ids = append(ids, res[0].Observation.ID)
	}

	timeline, err := s.GetTimeline(ids[2], 1)
	require.NoError(t, err)
	require.Len(t, timeline, 3)
	require.Equal(t, ids[1], timeline[0].ID)
	require.Equal(t, ids[2], timeline[1].ID)
	require.Equal(t, ids[3], timeline[2].ID)
}
