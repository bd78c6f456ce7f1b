package federation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memory-service/memoryd/pkg/types"
)

func TestWeights_GoldenSchedule(t *testing.T) {
	w := Weights(DecayGolden)
	require.InDelta(t, 1.0, w[0], 1e-3)
	require.InDelta(t, 0.618, w[1], 1e-3)
	require.InDelta(t, 0.382, w[2], 1e-3)
	require.InDelta(t, 0.236, w[3], 1e-3)
}

func TestWeights_ExponentialAndLinearSchedules(t *testing.T) {
	exp := Weights(DecayExponential)
	require.Equal(t, [4]float64{1.0, 0.5, 0.25, 0.125}, exp)

	lin := Weights(DecayLinear)
	require.Equal(t, [4]float64{1.0, 0.75, 0.5, 0.25}, lin)
}

func TestValidateFederationConfig_RejectsMoreThanThreeRemotes(t *testing.T) {
	require.NoError(t, ValidateFederationConfig(3))
	require.Error(t, ValidateFederationConfig(4))
}

func TestCombine_LocalAndRemoteScoresAdd(t *testing.T) {
	local := []types.QueryResult{{DocID: "obs_1_narrative", Distance: 0.2}}
	remotes := []RemoteResultSet{
		{Name: "laptop", Results: []types.QueryResult{{DocID: "obs_1_narrative", Distance: 0.1}}},
	}

	out, err := Combine(local, remotes, DecayGolden)
	require.NoError(t, err)
	require.Len(t, out, 1)

	localScore := 0.8
	remoteScore := 0.9 * goldenRatioInverse
	wantDistance := float32(1 - (localScore + remoteScore))
	require.InDelta(t, wantDistance, out[0].Distance, 1e-4)
}

func TestCombine_RemoteOnlyCandidateIsIncluded(t *testing.T) {
	local := []types.QueryResult{{DocID: "obs_1_narrative", Distance: 0.2}}
	remotes := []RemoteResultSet{
		{Name: "laptop", Results: []types.QueryResult{{DocID: "obs_9_narrative", Distance: 0.1}}},
	}

	out, err := Combine(local, remotes, DecayGolden)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestCombine_RejectsMoreThanThreeRemotes(t *testing.T) {
	remotes := make([]RemoteResultSet, 4)
	_, err := Combine(nil, remotes, DecayGolden)
	require.Error(t, err)
}

func TestCombine_RanksDescendingByCombinedScore(t *testing.T) {
	local := []types.QueryResult{
		{DocID: "strong", Distance: 0.1},
		{DocID: "weak", Distance: 0.9},
	}
	out, err := Combine(local, nil, DecayGolden)
	require.NoError(t, err)
	require.Equal(t, "strong", out[0].DocID)
	require.Equal(t, "weak", out[1].DocID)
}
