package federation

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memory-service/memoryd/internal/vector"
	"github.com/memory-service/memoryd/pkg/types"
)

func TestAdapter_Transform_PopulatesDeclaredFields(t *testing.T) {
	cfg := AdapterConfig{
		Fields: FieldMap{
			Title:     "name",
			Narrative: "details.summary",
			Type:      "kind",
			Project:   "proj",
			Timestamp: "metadata.timestamps.created",
		},
		Transforms: Transforms{Timestamp: TimestampISO8601},
	}
	a := NewAdapter(cfg)

	external := map[string]any{
		"name": "Found the race condition",
		"kind": "bugfix",
		"proj": "memoryd",
		"details": map[string]any{
			"summary": "a data race in the reaper",
		},
		"metadata": map[string]any{
			"timestamps": map[string]any{
				"created": "2024-01-15T10:30:00Z",
			},
		},
	}

	obs, err := a.Transform(external)
	require.NoError(t, err)
	require.Equal(t, "Found the race condition", obs.Title)
	require.Equal(t, types.ObservationType("bugfix"), obs.Type)
	require.Equal(t, "memoryd", obs.Project)
	require.Equal(t, "a data race in the reaper", obs.Narrative)
	require.EqualValues(t, 1705314600000, obs.CreatedAtEpoch)
}

func TestAdapter_Transform_MissingFieldsGetDefaults(t *testing.T) {
	a := NewAdapter(AdapterConfig{Fields: FieldMap{Title: "name"}})

	obs, err := a.Transform(map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "Untitled", obs.Title)
	require.Equal(t, types.ObsDiscovery, obs.Type)
	require.Equal(t, "unknown", obs.Project)
	require.NotZero(t, obs.CreatedAtEpoch)
}

func TestAdapter_TransformFacts_AllFormats(t *testing.T) {
	jsonAdapter := NewAdapter(AdapterConfig{Fields: FieldMap{Facts: "facts"}, Transforms: Transforms{Facts: FactsJSON}})
	facts, err := jsonAdapter.transformFacts(map[string]any{"facts": `["a","b"]`})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, facts)

	csvAdapter := NewAdapter(AdapterConfig{Fields: FieldMap{Facts: "facts"}, Transforms: Transforms{Facts: FactsCSV}})
	facts, err = csvAdapter.transformFacts(map[string]any{"facts": "a,b,c"})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, facts)

	arrAdapter := NewAdapter(AdapterConfig{Fields: FieldMap{Facts: "facts"}, Transforms: Transforms{Facts: FactsArray}})
	facts, err = arrAdapter.transformFacts(map[string]any{"facts": []any{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, facts)
}

func TestAdapter_TransformEmbedding_Base64RoundTripsWithVectorCodec(t *testing.T) {
	v := []float32{0.1, 0.2, 0.3}
	encoded := base64.StdEncoding.EncodeToString(vector.EncodeEmbedding(v))

	a := NewAdapter(AdapterConfig{
		Fields:     FieldMap{Embedding: "embedding"},
		Transforms: Transforms{Embedding: EmbeddingBase64},
	})
	decoded, err := a.TransformEmbedding(map[string]any{"embedding": encoded})
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	for i := range v {
		require.InDelta(t, v[i], decoded[i], 1e-4)
	}
}

func TestAdapter_TransformTimestamp_EpochSeconds(t *testing.T) {
	a := NewAdapter(AdapterConfig{
		Fields:     FieldMap{Timestamp: "ts"},
		Transforms: Transforms{Timestamp: TimestampEpochSec},
	})
	epoch, err := a.transformTimestamp(map[string]any{"ts": float64(1700000000)})
	require.NoError(t, err)
	require.EqualValues(t, 1700000000000, epoch)
}

func TestLookupPath_DotNotation(t *testing.T) {
	m := map[string]any{"a": map[string]any{"b": map[string]any{"c": "value"}}}
	v, ok := lookupPath(m, "a.b.c")
	require.True(t, ok)
	require.Equal(t, "value", v)

	_, ok = lookupPath(m, "a.missing.c")
	require.False(t, ok)
}
