package vector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memory-service/memoryd/pkg/types"
)

func TestGranulateObservation_NarrativePlusTwoFacts(t *testing.T) {
	o := &types.Observation{
		ID:        42,
		Narrative: "found the race",
		Facts:     []string{"fact one", "fact two"},
	}

	gs := granulateObservation(o)
	require.Len(t, gs, 3)
	require.Equal(t, "obs_42_narrative", gs[0].docID)
	require.Equal(t, "obs_42_fact_0", gs[1].docID)
	require.Equal(t, "obs_42_fact_1", gs[2].docID)
}

func TestGranulateObservation_EmptyFieldsSkipped(t *testing.T) {
	o := &types.Observation{ID: 1, Facts: []string{"", "real fact", ""}}
	gs := granulateObservation(o)
	require.Len(t, gs, 1)
	require.Equal(t, "obs_1_fact_1", gs[0].docID)
	require.Equal(t, "real fact", gs[0].content)
}

func TestGranulateSummary_OneDocPerNonEmptyField(t *testing.T) {
	s := &types.SessionSummary{ID: 7, Request: "fix the bug", Completed: "fixed it"}
	gs := granulateSummary(s)
	require.Len(t, gs, 2)
	require.Equal(t, "summary_7_request", gs[0].docID)
	require.Equal(t, "summary_7_completed", gs[1].docID)
}

func TestGranulateSummary_AllSixFields(t *testing.T) {
	s := &types.SessionSummary{
		ID:           1,
		Request:      "a",
		Investigated: "b",
		Learned:      "c",
		Completed:    "d",
		NextSteps:    "e",
		Notes:        "f",
	}
	gs := granulateSummary(s)
	require.Len(t, gs, 6)
}
