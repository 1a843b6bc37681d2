package memory

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/soyeahso/foodvoice/internal/logging"
)

// QdrantConfig holds the vector store connection and embedding shape.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
}

// Qdrant keeps preference entries as embedded points in a Qdrant collection.
type Qdrant struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
	dimensions int
	log        *logging.Logger
}

// NewQdrant connects to Qdrant over gRPC. The URL may omit the scheme
// (https is assumed) and the port (6334).
func NewQdrant(cfg QdrantConfig, embedder Embedder, log *logging.Logger) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("qdrant memory needs an embedder")
	}

	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Qdrant{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		dimensions: cfg.Dimensions,
		log:        log.Sub("memory"),
	}, nil
}

func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}
	port = 6334
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

// EnsureCollection creates the collection with cosine distance if missing.
func (q *Qdrant) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("checking qdrant collection: %w", err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating qdrant collection %q: %w", q.collection, err)
	}
	q.log.Info().Str("collection", q.collection).Int("dimensions", q.dimensions).Msg("created qdrant collection")
	return nil
}

// Remember embeds the entry text and upserts it as a point.
func (q *Qdrant) Remember(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	vec, err := q.embedder.Embed(ctx, e.Text)
	if err != nil {
		return fmt.Errorf("embedding preference: %w", err)
	}

	wait := true
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID(e.ID)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(entryPayload(e)),
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Recall returns the entries closest to query.
func (q *Qdrant) Recall(ctx context.Context, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 5
	}
	vec, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	lim := uint64(limit)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		e := entryFromPayload(p.Payload)
		if e.ID == "" && p.Id != nil {
			e.ID = p.Id.GetUuid()
		}
		matches = append(matches, Match{Entry: e, Score: p.Score})
	}
	return matches, nil
}

// Close releases the gRPC connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}

// pointID maps arbitrary entry ids onto the uuids Qdrant requires.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func entryPayload(e Entry) map[string]any {
	return map[string]any{
		"entry_id":   e.ID,
		"session_id": e.SessionID,
		"kind":       e.Kind,
		"content":    e.Text,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func entryFromPayload(payload map[string]*qdrant.Value) Entry {
	var e Entry
	for k, v := range payload {
		switch k {
		case "entry_id":
			e.ID = v.GetStringValue()
		case "session_id":
			e.SessionID = v.GetStringValue()
		case "kind":
			e.Kind = v.GetStringValue()
		case "content":
			e.Text = v.GetStringValue()
		case "created_at":
			if t, err := time.Parse(time.RFC3339Nano, v.GetStringValue()); err == nil {
				e.CreatedAt = t
			}
		}
	}
	return e
}

var _ Store = (*Qdrant)(nil)
