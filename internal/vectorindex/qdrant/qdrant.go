// Package qdrant is a minimal REST client to a Qdrant instance implementing
// the VectorIndex contract. It assumes cosine distance. Search results carry
// only id and score; payloads are stored for filtering but are never treated
// as authoritative (hydration happens against the local shadow store).
package qdrant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdfsearch/internal/domain"
)

// pointKeyField carries the caller's point ID inside the payload, since
// Qdrant requires UUID or integer point IDs of its own.
const pointKeyField = "point_key"

// pointKeyNamespace namespaces the deterministic UUIDv5 derived per point.
var pointKeyNamespace = uuid.MustParse("8f2b7c3e-5d1a-4e9b-9c6f-2a4d8e0b1f37")

func pointUUID(id string) string {
	return uuid.NewSHA1(pointKeyNamespace, []byte(id)).String()
}

// Index is a Qdrant-backed vector index.
type Index struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// Config contains connection details for a Qdrant vector index.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewIndex creates a Qdrant vector index client.
func NewIndex(cfg Config) *Index {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "pdf_documents"
	}
	return &Index{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// CreateCollection creates the collection with the given dimension. An
// already-existing collection is treated as success.
func (x *Index) CreateCollection(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	err := x.putJSON(fmt.Sprintf("%s/collections/%s", x.url, x.collection), body)
	if err != nil && strings.Contains(err.Error(), "409") {
		// Collection already exists with this schema
		return nil
	}
	return err
}

// Insert upserts a batch of points. Qdrant only accepts UUID or integer
// point IDs, so the caller's ID is mapped to a deterministic UUIDv5 (same
// ID, same UUID, so re-inserts stay idempotent overwrites) and kept in the
// payload for the return trip.
func (x *Index) Insert(points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	pts := make([]map[string]any, 0, len(points))
	for _, p := range points {
		payload := map[string]any{pointKeyField: p.ID}
		for k, v := range p.Payload {
			payload[k] = v
		}
		pts = append(pts, map[string]any{
			"id":      pointUUID(p.ID),
			"vector":  p.Vector,
			"payload": payload,
		})
	}
	body := map[string]any{"points": pts}
	return x.putJSON(fmt.Sprintf("%s/collections/%s/points?wait=true", x.url, x.collection), body)
}

// Search returns the topK nearest points as id+score pairs, ordered by
// descending similarity. filter restricts hits by payload field equality.
func (x *Index) Search(vector []float64, topK int, filter map[string]string) ([]domain.VectorHit, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": map[string]any{"include": []string{pointKeyField}},
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, val := range filter {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": val},
			})
		}
		req["filter"] = map[string]any{"must": must}
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := x.postJSON(fmt.Sprintf("%s/collections/%s/points/search", x.url, x.collection), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload[pointKeyField].(string)
		if id == "" {
			id = fmt.Sprintf("%v", r.ID)
		}
		hits = append(hits, domain.VectorHit{ID: id, Score: r.Score})
	}
	return hits, nil
}

// DeleteCollection drops the collection.
func (x *Index) DeleteCollection() error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/collections/%s", x.url, x.collection), nil)
	if err != nil {
		return err
	}
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("qdrant delete collection failed: %s", resp.Status)
	}
	return nil
}

// Info returns collection details, or nil if the collection does not exist.
func (x *Index) Info() (*domain.CollectionInfo, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/collections/%s", x.url, x.collection), nil)
	if err != nil {
		return nil, err
	}
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant collection info failed: %s", resp.Status)
	}
	var out struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &domain.CollectionInfo{
		Name:      x.collection,
		Dimension: out.Result.Config.Params.Vectors.Size,
		Points:    out.Result.PointsCount,
	}, nil
}

func (x *Index) putJSON(url string, body any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (x *Index) postJSON(url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
