// Compares exact and approximate vector search on a synthetic corpus.
// The mock embedder gives deterministic vectors, so recall numbers are
// reproducible across runs.
//
// Usage:
//
//	go run cmd/benchmark/main.go -n 20000 -dim 256 -k 10 -cells 64 -probes 8
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"webrag/internal/adapter/embedding"
	"webrag/internal/adapter/index"
	"webrag/internal/port"
)

func main() {
	n := flag.Int("n", 10000, "Number of vectors")
	dim := flag.Int("dim", 256, "Vector dimension")
	topK := flag.Int("k", 10, "Results per query")
	queries := flag.Int("queries", 50, "Number of benchmark queries")
	cells := flag.Int("cells", 64, "IVF cell count")
	probes := flag.Int("probes", 8, "IVF cells probed per query")
	flag.Parse()

	embedder := embedding.NewMockEmbedder(*dim)

	flat, err := index.NewFlatIndex(*dim, index.Cosine{})
	exitOn(err)
	ivf, err := index.NewIVFIndex(*dim, index.Cosine{}, *cells, *probes)
	exitOn(err)

	fmt.Println("VECTOR SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Vectors: %d, dimension: %d, top-k: %d\n", *n, *dim, *topK)
	fmt.Printf("IVF: %d cells, %d probes\n\n", *cells, *probes)

	fmt.Print("Building indexes... ")
	start := time.Now()
	texts := make([]string, *n)
	for i := range texts {
		texts[i] = fmt.Sprintf("synthetic passage %d about topic %d", i, i%100)
	}
	vectors, err := embedder.Embed(context.Background(), texts)
	exitOn(err)
	for i, vec := range vectors {
		id := fmt.Sprintf("c%08d", i)
		exitOn(flat.Upsert(id, vec))
		exitOn(ivf.Upsert(id, vec))
	}
	fmt.Printf("done in %s\n\n", time.Since(start).Round(time.Millisecond))

	queryTexts := make([]string, *queries)
	for i := range queryTexts {
		queryTexts[i] = fmt.Sprintf("synthetic passage %d about topic %d", i*37%*n, (i*37%*n)%100)
	}
	queryVecs, err := embedder.Embed(context.Background(), queryTexts)
	exitOn(err)

	flatTime, flatHits := run(flat, queryVecs, *topK)
	ivfTime, ivfHits := run(ivf, queryVecs, *topK)

	recall := 0.0
	for i := range flatHits {
		recall += overlap(flatHits[i], ivfHits[i])
	}
	recall /= float64(len(flatHits))

	fmt.Printf("Exact scan:   %8s/query\n", (flatTime / time.Duration(*queries)).Round(time.Microsecond))
	fmt.Printf("IVF probed:   %8s/query\n", (ivfTime / time.Duration(*queries)).Round(time.Microsecond))
	fmt.Printf("Speedup:      %.1fx\n", float64(flatTime)/float64(ivfTime))
	fmt.Printf("Recall@%d:    %.3f\n", *topK, recall)
}

func run(ix port.VectorIndex, queries [][]float32, k int) (time.Duration, [][]port.SearchHit) {
	hits := make([][]port.SearchHit, len(queries))
	start := time.Now()
	for i, q := range queries {
		result, err := ix.Search(q, k, -1)
		exitOn(err)
		hits[i] = result
	}
	return time.Since(start), hits
}

func overlap(exact, approx []port.SearchHit) float64 {
	if len(exact) == 0 {
		return 1
	}
	ids := make(map[string]bool, len(exact))
	for _, h := range exact {
		ids[h.ChunkID] = true
	}
	found := 0
	for _, h := range approx {
		if ids[h.ChunkID] {
			found++
		}
	}
	return float64(found) / float64(len(exact))
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
