// Package matching finds best-matching counterparts for entities across two
// partitions (for example two knowledge graphs) by exact cosine scoring.
package matching

import (
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/similarity"
)

var (
	// ErrMissingEmbedding is returned when the query entity carries no vector.
	ErrMissingEmbedding = errors.New("entity has no embedding")
	// ErrUnknownPartition is returned when the query entity's partition tag
	// is neither A nor B.
	ErrUnknownPartition = errors.New("unknown partition")
)

// DefaultParallelPairs is the all-pairs size at which scoring fans out
// across goroutines.
const DefaultParallelPairs = 2048

// Options controls a matching call.
type Options struct {
	Threshold float64
	// TopK caps matches per query entity; <= 0 keeps all.
	TopK int
	// LimitA and LimitB cap the vectorized entities considered from each
	// partition in all-pairs mode, in caller order; <= 0 means no cap.
	LimitA int
	LimitB int
	// ParallelPairs is the A*B pair count at or above which all-pairs mode
	// scores A entities concurrently; <= 0 disables concurrency.
	ParallelPairs int
}

// Result is the output of Match.
type Result struct {
	Matches []apptype.Match
	// TotalFound counts qualifying pairs before top-K truncation.
	TotalFound int
	// PairsScored counts similarity evaluations.
	PairsScored int
}

type scored struct {
	idx int
	sim float64
}

// Match scores query against the opposite partition, or every vectorized A
// entity against every vectorized B entity when query is nil. Matches are
// sorted by similarity descending; ties keep scan order.
func Match(query *apptype.Entity, partitionA, partitionB []apptype.Entity, opts Options) (Result, error) {
	if query != nil {
		return matchOne(*query, partitionA, partitionB, opts)
	}
	return matchAll(partitionA, partitionB, opts), nil
}

func matchOne(query apptype.Entity, partitionA, partitionB []apptype.Entity, opts Options) (Result, error) {
	if len(query.Embedding) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingEmbedding, query.ID)
	}

	var candidates []apptype.Entity
	switch query.Partition {
	case apptype.PartitionA:
		candidates = partitionB
	case apptype.PartitionB:
		candidates = partitionA
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPartition, query.Partition)
	}

	hits, total, pairs := score(query, candidates, opts.Threshold, opts.TopK)
	matches := make([]apptype.Match, len(hits))
	for i, h := range hits {
		if query.Partition == apptype.PartitionA {
			matches[i] = newMatch(query, candidates[h.idx], h.sim)
		} else {
			matches[i] = newMatch(candidates[h.idx], query, h.sim)
		}
	}
	return Result{Matches: matches, TotalFound: total, PairsScored: pairs}, nil
}

func matchAll(partitionA, partitionB []apptype.Entity, opts Options) Result {
	as := vectorized(partitionA, opts.LimitA)
	bs := vectorized(partitionB, opts.LimitB)

	perA := make([][]apptype.Match, len(as))
	totals := make([]int, len(as))
	run := func(i int) {
		hits, total, _ := score(as[i], bs, opts.Threshold, opts.TopK)
		ms := make([]apptype.Match, len(hits))
		for j, h := range hits {
			ms[j] = newMatch(as[i], bs[h.idx], h.sim)
		}
		perA[i] = ms
		totals[i] = total
	}

	pairs := len(as) * len(bs)
	if opts.ParallelPairs > 0 && pairs >= opts.ParallelPairs && len(as) > 1 {
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range as {
			g.Go(func() error {
				run(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range as {
			run(i)
		}
	}

	res := Result{Matches: make([]apptype.Match, 0), PairsScored: pairs}
	for i := range perA {
		res.Matches = append(res.Matches, perA[i]...)
		res.TotalFound += totals[i]
	}
	sort.SliceStable(res.Matches, func(i, j int) bool {
		return res.Matches[i].Similarity > res.Matches[j].Similarity
	})
	return res
}

// score returns the top-K qualifying candidates for query together with the
// qualifying count before truncation and the number of pairs evaluated.
func score(query apptype.Entity, candidates []apptype.Entity, threshold float64, topK int) ([]scored, int, int) {
	hits := make([]scored, 0)
	pairs := 0
	for i, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		pairs++
		s := similarity.Cosine(query.Embedding, c.Embedding)
		if s >= threshold {
			hits = append(hits, scored{idx: i, sim: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })
	total := len(hits)
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, total, pairs
}

func vectorized(entities []apptype.Entity, limit int) []apptype.Entity {
	out := make([]apptype.Entity, 0, len(entities))
	for _, e := range entities {
		if len(e.Embedding) == 0 {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func newMatch(a, b apptype.Entity, sim float64) apptype.Match {
	return apptype.Match{
		EntityAID:   a.ID,
		EntityAName: a.Name,
		EntityAType: a.EntityType,
		EntityBID:   b.ID,
		EntityBName: b.Name,
		EntityBType: b.EntityType,
		Similarity:  sim,
	}
}
