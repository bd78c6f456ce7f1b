package federation

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/memory-service/memoryd/pkg/types"
)

// TimestampFormat names how an external record encodes its timestamp.
type TimestampFormat string

const (
	TimestampEpochMs  TimestampFormat = "epoch_ms"
	TimestampEpochSec TimestampFormat = "epoch_s"
	TimestampISO8601  TimestampFormat = "iso8601"
)

// EmbeddingFormat names how an external record encodes its embedding.
type EmbeddingFormat string

const (
	EmbeddingArray     EmbeddingFormat = "array"
	EmbeddingBase64    EmbeddingFormat = "base64"
	EmbeddingJSONArray EmbeddingFormat = "json_array"
	EmbeddingBinary    EmbeddingFormat = "binary"
)

// FactsFormat names how an external record encodes its facts list.
type FactsFormat string

const (
	FactsJSON  FactsFormat = "json"
	FactsCSV   FactsFormat = "csv"
	FactsArray FactsFormat = "array"
)

// FieldMap names the dot-path within an external record for each internal
// field. Dot notation reaches nested objects, e.g.
// "metadata.timestamps.created".
type FieldMap struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle,omitempty"`
	Narrative string `json:"narrative,omitempty"`
	Facts     string `json:"facts,omitempty"`
	Type      string `json:"type,omitempty"`
	Project   string `json:"project,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Embedding string `json:"embedding,omitempty"`
}

// Transforms names the value-format translation applied to a few fields
// whose wire shape varies across external systems.
type Transforms struct {
	Timestamp TimestampFormat `json:"timestamp,omitempty"`
	Embedding EmbeddingFormat `json:"embedding,omitempty"`
	Facts     FactsFormat     `json:"facts,omitempty"`
}

// AdapterConfig declaratively maps one external record shape to the
// internal Observation shape.
type AdapterConfig struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	URL        string     `json:"url"`
	Fields     FieldMap   `json:"fields"`
	Transforms Transforms `json:"transforms"`
}

// Adapter applies an AdapterConfig to raw external records.
type Adapter struct {
	cfg AdapterConfig
}

// NewAdapter builds an Adapter bound to cfg.
func NewAdapter(cfg AdapterConfig) *Adapter {
	return &Adapter{cfg: cfg}
}

// Transform maps one external record (already decoded from JSON into a
// generic tree) into an InternalObservation. Missing paths yield the
// spec.md §4.F defaults: type="discovery", project="unknown",
// timestamp=now().
func (a *Adapter) Transform(external map[string]any) (*types.Observation, error) {
	o := &types.Observation{
		Type:    types.ObsDiscovery,
		Project: "unknown",
	}

	if v, ok := lookupPath(external, a.cfg.Fields.Title); ok {
		o.Title = fmt.Sprint(v)
	}
	if v, ok := lookupPath(external, a.cfg.Fields.Subtitle); ok {
		o.Subtitle = fmt.Sprint(v)
	}
	if v, ok := lookupPath(external, a.cfg.Fields.Narrative); ok {
		o.Narrative = fmt.Sprint(v)
	}
	if v, ok := lookupPath(external, a.cfg.Fields.Type); ok && fmt.Sprint(v) != "" {
		o.Type = types.ObservationType(fmt.Sprint(v))
	}
	if v, ok := lookupPath(external, a.cfg.Fields.Project); ok && fmt.Sprint(v) != "" {
		o.Project = fmt.Sprint(v)
	}

	facts, err := a.transformFacts(external)
	if err != nil {
		return nil, fmt.Errorf("transform facts: %w", err)
	}
	o.Facts = facts

	epoch, err := a.transformTimestamp(external)
	if err != nil {
		return nil, fmt.Errorf("transform timestamp: %w", err)
	}
	o.CreatedAtEpoch = epoch

	if o.Title == "" {
		o.Title = "Untitled"
	}
	return o, nil
}

// TransformEmbedding decodes the external record's embedding field, if
// present, per the configured EmbeddingFormat.
func (a *Adapter) TransformEmbedding(external map[string]any) ([]float32, error) {
	v, ok := lookupPath(external, a.cfg.Fields.Embedding)
	if !ok {
		return nil, nil
	}
	switch a.cfg.Transforms.Embedding {
	case EmbeddingBase64:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("embedding field is not a string")
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("decode base64 embedding: %w", err)
		}
		return decodeFloat32LE(raw)
	case EmbeddingJSONArray:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("embedding field is not a string")
		}
		var floats []float64
		if err := json.Unmarshal([]byte(s), &floats); err != nil {
			return nil, fmt.Errorf("decode json_array embedding: %w", err)
		}
		return toFloat32(floats), nil
	case EmbeddingBinary:
		raw, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("embedding field is not binary")
		}
		return decodeFloat32LE(raw)
	default: // array (native []any of numbers)
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("embedding field is not an array")
		}
		floats := make([]float64, len(arr))
		for i, e := range arr {
			f, ok := toFloat64(e)
			if !ok {
				return nil, fmt.Errorf("embedding element %d is not numeric", i)
			}
			floats[i] = f
		}
		return toFloat32(floats), nil
	}
}

func (a *Adapter) transformFacts(external map[string]any) ([]string, error) {
	v, ok := lookupPath(external, a.cfg.Fields.Facts)
	if !ok {
		return nil, nil
	}
	switch a.cfg.Transforms.Facts {
	case FactsCSV:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("facts field is not a string")
		}
		r := csv.NewReader(strings.NewReader(s))
		record, err := r.Read()
		if err != nil {
			return nil, err
		}
		return record, nil
	case FactsJSON:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("facts field is not a string")
		}
		var facts []string
		if err := json.Unmarshal([]byte(s), &facts); err != nil {
			return nil, err
		}
		return facts, nil
	default: // array
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("facts field is not an array")
		}
		facts := make([]string, len(arr))
		for i, e := range arr {
			facts[i] = fmt.Sprint(e)
		}
		return facts, nil
	}
}

func (a *Adapter) transformTimestamp(external map[string]any) (int64, error) {
	v, ok := lookupPath(external, a.cfg.Fields.Timestamp)
	if !ok {
		return time.Now().UnixMilli(), nil
	}
	switch a.cfg.Transforms.Timestamp {
	case TimestampEpochSec:
		f, ok := toFloat64(v)
		if !ok {
			return 0, fmt.Errorf("timestamp field is not numeric")
		}
		return int64(f * 1000), nil
	case TimestampISO8601:
		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("timestamp field is not a string")
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, fmt.Errorf("parse iso8601 timestamp: %w", err)
		}
		return t.UnixMilli(), nil
	default: // epoch_ms
		f, ok := toFloat64(v)
		if !ok {
			return 0, fmt.Errorf("timestamp field is not numeric")
		}
		return int64(f), nil
	}
}

// lookupPath walks dotted into a generic decoded-JSON tree.
func lookupPath(m map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = asMap[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}

// decodeFloat32LE mirrors vector.DecodeEmbedding's little-endian IEEE 754
// float32 codec, duplicated here so the federation package has no
// dependency on the vector package (remotes are read-only views, never full
// peers, per spec.md §9).
func decodeFloat32LE(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}
