// Package memory is an in-process vector index with the same contract as
// the remote backends: upsert by ID, brute-force cosine search, payload
// equality filtering.
package memory

import (
	"errors"
	"sync"

	"pdfsearch/internal/domain"
)

type point struct {
	vector  []float64
	payload map[string]any
}

// Index is a local, concurrency-safe vector index.
type Index struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]point
}

// NewIndex creates an empty local vector index.
func NewIndex() *Index { return &Index{} }

// CreateCollection sets the dimension. Calling it again with the same
// dimension is a no-op; existing points are kept.
func (x *Index) CreateCollection(dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.points != nil && x.dimension == dimension {
		return nil
	}
	if x.points != nil && x.dimension != dimension {
		return errors.New("collection exists with different dimension")
	}
	x.dimension = dimension
	x.points = make(map[string]point)
	return nil
}

// Insert upserts points by ID, overwriting existing vectors and payloads.
func (x *Index) Insert(points []domain.VectorPoint) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.points == nil {
		return errors.New("collection does not exist")
	}
	for _, p := range points {
		if len(p.Vector) != x.dimension {
			return errors.New("vector dimension mismatch")
		}
	}
	for _, p := range points {
		x.points[p.ID] = point{vector: p.Vector, payload: p.Payload}
	}
	return nil
}

// Search returns the topK most similar points ordered by descending cosine
// score. filter restricts candidates by payload field equality.
func (x *Index) Search(vector []float64, topK int, filter map[string]string) ([]domain.VectorHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.points == nil {
		return nil, errors.New("collection does not exist")
	}
	if topK <= 0 {
		topK = 5
	}
	ids := make([]string, 0, len(x.points))
	scores := make([]float64, 0, len(x.points))
	for id, p := range x.points {
		if !matchesFilter(p.payload, filter) {
			continue
		}
		ids = append(ids, id)
		scores = append(scores, dot(p.vector, vector))
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	hits := make([]domain.VectorHit, 0, topK)
	for i := 0; i < topK; i++ {
		j := idxs[i]
		hits = append(hits, domain.VectorHit{ID: ids[j], Score: scores[j]})
	}
	return hits, nil
}

// DeleteCollection drops all points. Deleting an absent collection is not
// an error.
func (x *Index) DeleteCollection() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.dimension = 0
	x.points = nil
	return nil
}

// Info returns collection details, or nil if the collection is absent.
func (x *Index) Info() (*domain.CollectionInfo, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.points == nil {
		return nil, nil
	}
	return &domain.CollectionInfo{Name: "memory", Dimension: x.dimension, Points: len(x.points)}, nil
}

func matchesFilter(payload map[string]any, filter map[string]string) bool {
	for key, want := range filter {
		got, ok := payload[key]
		if !ok {
			return false
		}
		s, ok := got.(string)
		if !ok || s != want {
			return false
		}
	}
	return true
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	quicksort(idxs, vals, 0, len(idxs)-1)
	return idxs
}

func quicksort(idxs []int, vals []float64, lo, hi int) {
	if lo >= hi {
		return
	}
	i, j := lo, hi
	pivot := vals[idxs[(lo+hi)/2]]
	for i <= j {
		for vals[idxs[i]] > pivot { // desc order
			i++
		}
		for vals[idxs[j]] < pivot {
			j--
		}
		if i <= j {
			idxs[i], idxs[j] = idxs[j], idxs[i]
			i++
			j--
		}
	}
	if lo < j {
		quicksort(idxs, vals, lo, j)
	}
	if i < hi {
		quicksort(idxs, vals, i, hi)
	}
}
