package rag

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written for every stored chunk.
const (
	payloadText        = "text"
	payloadSource      = "source"
	payloadChunkID     = "chunk_id"
	payloadTotalChunks = "total_chunks"
	payloadSize        = "size"
	payloadUnit        = "unit"
	payloadTokens      = "tokens"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use (default: ragdesk).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "ragdesk"
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be positive")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return store, nil
}

// Client exposes the underlying gRPC client for readiness probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores a batch of chunks with their embeddings and waits for the
// write to be applied so a subsequent Search observes it.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(toPayload(doc)),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := fromPayload(r.GetPayload())
		doc.ID = r.GetId().GetUuid()
		doc.Score = r.GetScore()
		docs = append(docs, doc)
	}

	return docs, nil
}

// DeleteSource removes every point whose source payload equals source.
func (s *QdrantStore) DeleteSource(ctx context.Context, source string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadSource, source)},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete source %q failed: %w", source, err)
	}
	return nil
}

// DeleteAll drops the collection and recreates it empty with the same
// vector configuration.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("qdrant: drop collection %q failed: %w", s.cfg.Collection, err)
	}
	return s.ensureCollection(ctx)
}

// Stats reports the exact point count and collection status.
func (s *QdrantStore) Stats(ctx context.Context) (Stats, error) {
	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return Stats{}, fmt.Errorf("qdrant: collection info failed: %w", err)
	}
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return Stats{}, fmt.Errorf("qdrant: count failed: %w", err)
	}

	size := s.cfg.VectorSize
	if p := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); p != nil {
		size = p.GetSize()
	}

	return Stats{
		Collection: s.cfg.Collection,
		Points:     count,
		VectorSize: size,
		Status:     info.GetStatus().String(),
	}, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// toPayload flattens a Document into the stored payload map.
func toPayload(doc Document) map[string]any {
	payload := map[string]any{
		payloadText:        doc.Content,
		payloadSource:      doc.Source,
		payloadChunkID:     int64(doc.ChunkIndex),
		payloadTotalChunks: int64(doc.TotalChunks),
		payloadSize:        int64(doc.Size),
		payloadUnit:        doc.Unit,
		payloadTokens:      int64(doc.Tokens),
	}
	for k, v := range doc.Metadata {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}
	return payload
}

// fromPayload rebuilds a Document from a stored payload. Unknown keys are
// carried into Metadata as strings.
func fromPayload(p map[string]*qdrant.Value) Document {
	doc := Document{Metadata: make(map[string]string)}
	for k, v := range p {
		switch k {
		case payloadText:
			doc.Content = v.GetStringValue()
		case payloadSource:
			doc.Source = v.GetStringValue()
		case payloadChunkID:
			doc.ChunkIndex = int(v.GetIntegerValue())
		case payloadTotalChunks:
			doc.TotalChunks = int(v.GetIntegerValue())
		case payloadSize:
			doc.Size = int(v.GetIntegerValue())
		case payloadUnit:
			doc.Unit = v.GetStringValue()
		case payloadTokens:
			doc.Tokens = int(v.GetIntegerValue())
		default:
			doc.Metadata[k] = valueString(v)
		}
	}
	return doc
}

func valueString(v *qdrant.Value) string {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(k.IntegerValue, 10)
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(k.DoubleValue, 'f', -1, 64)
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		return ""
	}
}
