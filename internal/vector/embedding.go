package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEmbedding packs a float32 vector into a little-endian byte blob
// suitable for the vector_documents.embedding column.
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeEmbedding unpacks a little-endian byte blob back into a float32
// vector. Returns an error if the blob length is not a multiple of 4.
func DecodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("decode embedding: length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// CosineSimilarity returns the cosine similarity of two equal-length
// vectors, or 0 if either has zero magnitude.
func CosineSimilarity(a, b []float32) float32 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

// EmbeddingProvider turns text into a vector. Implementations speak an
// OpenAI-compatible embeddings endpoint (local LM Studio, OpenAI itself, or
// any provider exposing the same wire shape).
type EmbeddingProvider interface {
	Embed(text string) ([]float32, error)
	Dimensions() int
}
