package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/memory-service/memoryd/pkg/types"
)

// payloadIDField stores the original vector_documents.id in the point
// payload, since Qdrant point ids must be a UUID or a positive integer.
const payloadIDField = "_original_id"

// qdrantIndex drives an ANN index over Qdrant's gRPC API as an optional
// accelerator in front of the SQLite-resident document table; the row in
// vector_documents remains the source of truth.
type qdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

func newQdrantIndex(dsn, collection string, dimensions int) (*qdrantIndex, error) {
	if collection == "" {
		collection = "memoryd"
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return &qdrantIndex{client: client, collection: collection, dimension: dimensions}, nil
}

func (q *qdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func pointID(docID string) string {
	if _, err := uuid.Parse(docID); err == nil {
		return docID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(docID)).String()
}

func (q *qdrantIndex) upsert(ctx context.Context, docID string, vec []float32, metadata []byte) error {
	payload := map[string]any{payloadIDField: docID}
	var metaMap map[string]any
	if err := json.Unmarshal(metadata, &metaMap); err == nil {
		for k, v := range metaMap {
			payload[k] = v
		}
	}

	points := []*qdrant.PointStruct{{
		Id:      qdrant.NewIDUUID(pointID(docID)),
		Vectors: qdrant.NewVectorsDense(vec),
		Payload: qdrant.NewValueMap(payload),
	}}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	return err
}

func (q *qdrantIndex) delete(ctx context.Context, docID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(pointID(docID))),
	})
	return err
}

func (q *qdrantIndex) search(ctx context.Context, vec []float32, filters types.QueryFilters, topK int) ([]types.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}
	var must []*qdrant.Condition
	if filters.Project != "" {
		must = append(must, qdrant.NewMatch("project", filters.Project))
	}
	if filters.DocType != "" {
		must = append(must, qdrant.NewMatch("docType", string(filters.DocType)))
	}
	if filters.MemorySessionID != "" {
		must = append(must, qdrant.NewMatch("memorySessionId", filters.MemorySessionID))
	}
	var queryFilter *qdrant.Filter
	if len(must) > 0 {
		queryFilter = &qdrant.Filter{Must: must}
	}

	limit := uint64(topK)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]types.QueryResult, 0, len(hits))
	for _, hit := range hits {
		docID := hit.Id.GetUuid()
		meta := map[string]any{}
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == payloadIDField {
					docID = v.GetStringValue()
					continue
				}
				meta[k] = v.GetStringValue()
			}
		}
		metaJSON, _ := json.Marshal(meta)
		results = append(results, types.QueryResult{
			DocID:    docID,
			Distance: 1 - hit.Score,
			Metadata: metaJSON,
		})
	}
	return results, nil
}
