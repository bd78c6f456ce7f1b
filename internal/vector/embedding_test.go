package vector

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEmbedding_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	v := make([]float32, 768)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}

	decoded, err := DecodeEmbedding(EncodeEmbedding(v))
	require.NoError(t, err)
	require.Len(t, decoded, len(v))
	for i := range v {
		require.InDelta(t, v[i], decoded[i], 1e-4)
	}
}

func TestDecodeEmbedding_RejectsMisalignedLength(t *testing.T) {
	_, err := DecodeEmbedding([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	v := []float32{1, 2, 3}
	require.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-6)
}

func TestCosineSimilarity_OrthogonalVectorsScoreZero(t *testing.T) {
	require.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
}

func TestCosineSimilarity_ZeroMagnitudeIsZero(t *testing.T) {
	require.Equal(t, float32(0), CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
