package index

import (
	"sort"
	"sync"

	"webrag/internal/domain"
	"webrag/internal/port"
)

// IVFIndex is an inverted-file approximate index: vectors are assigned to
// the nearest of nlist centroids, and a query only scans the members of
// the nprobe closest cells. The ordering contract matches FlatIndex over
// the scanned candidates; recall depends on nprobe/nlist.
//
// Until enough vectors have been inserted to train the coarse quantizer
// (and whenever exact mode is enabled) searches fall back to a full scan,
// so correctness testing can always compare against exact results.
type IVFIndex struct {
	mu     sync.RWMutex
	dim    int
	metric Metric
	nlist  int
	nprobe int
	exact  bool

	vectors   map[string][]float32
	centroids [][]float32
	cells     [][]string
	assign    map[string]int
	trainedAt int // index size at last training
}

const kmeansIterations = 10

// NewIVFIndex creates an empty approximate index. nprobe must not exceed
// nlist.
func NewIVFIndex(dim int, metric Metric, nlist, nprobe int) (*IVFIndex, error) {
	if dim <= 0 {
		return nil, &domain.ConfigError{Field: "embedding.dimension", Reason: "must be positive"}
	}
	if nlist <= 0 {
		return nil, &domain.ConfigError{Field: "index.ivf_cells", Reason: "must be positive"}
	}
	if nprobe <= 0 || nprobe > nlist {
		return nil, &domain.ConfigError{Field: "index.ivf_probes", Reason: "must be between 1 and ivf_cells"}
	}
	return &IVFIndex{
		dim:     dim,
		metric:  metric,
		nlist:   nlist,
		nprobe:  nprobe,
		vectors: make(map[string][]float32),
		assign:  make(map[string]int),
	}, nil
}

// SetExact toggles exact-scan fallback mode.
func (ix *IVFIndex) SetExact(exact bool) {
	ix.mu.Lock()
	ix.exact = exact
	ix.mu.Unlock()
}

// Upsert inserts or replaces the vector for the chunk ID, retraining the
// coarse quantizer lazily as the index grows.
func (ix *IVFIndex) Upsert(chunkID string, vector []float32) error {
	if len(vector) != ix.dim {
		return &domain.DimensionError{Want: ix.dim, Got: len(vector)}
	}

	owned := make([]float32, len(vector))
	copy(owned, vector)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if cell, ok := ix.assign[chunkID]; ok {
		ix.removeFromCell(chunkID, cell)
	}
	ix.vectors[chunkID] = owned

	if ix.shouldTrain() {
		ix.train()
		return nil
	}

	if len(ix.centroids) > 0 {
		cell := ix.nearestCentroid(owned)
		ix.cells[cell] = append(ix.cells[cell], chunkID)
		ix.assign[chunkID] = cell
	}
	return nil
}

// Remove deletes the entry for the chunk ID, if present.
func (ix *IVFIndex) Remove(chunkID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.vectors[chunkID]; !ok {
		return nil
	}
	delete(ix.vectors, chunkID)
	if cell, ok := ix.assign[chunkID]; ok {
		ix.removeFromCell(chunkID, cell)
		delete(ix.assign, chunkID)
	}
	return nil
}

// Search probes the nprobe nearest cells (or scans everything in exact or
// untrained mode) and returns at most k hits with score >= minScore,
// ordered by descending score, ties broken by ascending chunk ID.
func (ix *IVFIndex) Search(query []float32, k int, minScore float64) ([]port.SearchHit, error) {
	if len(query) != ix.dim {
		return nil, &domain.DimensionError{Want: ix.dim, Got: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	var hits []port.SearchHit
	if ix.exact || len(ix.centroids) == 0 {
		hits = make([]port.SearchHit, 0, len(ix.vectors))
		for id, vec := range ix.vectors {
			if score := ix.metric.Score(query, vec); score >= minScore {
				hits = append(hits, port.SearchHit{ChunkID: id, Score: score})
			}
		}
	} else {
		for _, cell := range ix.probeCells(query) {
			for _, id := range ix.cells[cell] {
				if score := ix.metric.Score(query, ix.vectors[id]); score >= minScore {
					hits = append(hits, port.SearchHit{ChunkID: id, Score: score})
				}
			}
		}
	}
	ix.mu.RUnlock()

	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Size returns the number of stored entries.
func (ix *IVFIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Entries returns all stored entries ordered by chunk ID. Vectors are
// copies.
func (ix *IVFIndex) Entries() []port.IndexEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := make([]port.IndexEntry, 0, len(ix.vectors))
	for id, vec := range ix.vectors {
		owned := make([]float32, len(vec))
		copy(owned, vec)
		entries = append(entries, port.IndexEntry{ChunkID: id, Vector: owned})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ChunkID < entries[j].ChunkID
	})
	return entries
}

// shouldTrain reports whether the quantizer needs (re)training: enough
// vectors for stable cells, and the index has doubled since last training.
func (ix *IVFIndex) shouldTrain() bool {
	n := len(ix.vectors)
	if n < 2*ix.nlist {
		return false
	}
	return len(ix.centroids) == 0 || n >= 2*ix.trainedAt
}

// train runs a small deterministic k-means over the current vectors and
// rebuilds all cell assignments. Caller holds the write lock.
func (ix *IVFIndex) train() {
	ids := make([]string, 0, len(ix.vectors))
	for id := range ix.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Evenly spaced seeds over the ID-sorted vectors keep training
	// deterministic for identical index state.
	ix.centroids = make([][]float32, ix.nlist)
	step := len(ids) / ix.nlist
	if step == 0 {
		step = 1
	}
	for i := 0; i < ix.nlist; i++ {
		seed := ix.vectors[ids[(i*step)%len(ids)]]
		c := make([]float32, ix.dim)
		copy(c, seed)
		ix.centroids[i] = c
	}

	assign := make([]int, len(ids))
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, id := range ids {
			best := ix.nearestCentroid(ix.vectors[id])
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([][]float64, ix.nlist)
		counts := make([]int, ix.nlist)
		for i := range sums {
			sums[i] = make([]float64, ix.dim)
		}
		for i, id := range ids {
			vec := ix.vectors[id]
			cell := assign[i]
			counts[cell]++
			for d, v := range vec {
				sums[cell][d] += float64(v)
			}
		}
		for c := 0; c < ix.nlist; c++ {
			if counts[c] == 0 {
				continue // empty cell keeps its centroid
			}
			for d := 0; d < ix.dim; d++ {
				ix.centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
	}

	ix.cells = make([][]string, ix.nlist)
	ix.assign = make(map[string]int, len(ids))
	for i, id := range ids {
		cell := assign[i]
		ix.cells[cell] = append(ix.cells[cell], id)
		ix.assign[id] = cell
	}
	ix.trainedAt = len(ids)
}

func (ix *IVFIndex) nearestCentroid(vec []float32) int {
	best := 0
	bestScore := ix.metric.Score(vec, ix.centroids[0])
	for i := 1; i < len(ix.centroids); i++ {
		if score := ix.metric.Score(vec, ix.centroids[i]); score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best
}

// probeCells returns the indices of the nprobe centroids nearest the query.
func (ix *IVFIndex) probeCells(query []float32) []int {
	type scored struct {
		cell  int
		score float64
	}
	ranked := make([]scored, len(ix.centroids))
	for i, c := range ix.centroids {
		ranked[i] = scored{cell: i, score: ix.metric.Score(query, c)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].cell < ranked[j].cell
	})

	n := ix.nprobe
	if n > len(ranked) {
		n = len(ranked)
	}
	cells := make([]int, n)
	for i := 0; i < n; i++ {
		cells[i] = ranked[i].cell
	}
	return cells
}

func (ix *IVFIndex) removeFromCell(chunkID string, cell int) {
	if cell >= len(ix.cells) {
		return
	}
	members := ix.cells[cell]
	for i, id := range members {
		if id == chunkID {
			ix.cells[cell] = append(members[:i], members[i+1:]...)
			return
		}
	}
}
