// Package clustering groups items into themes with a single-pass greedy
// assignment against cluster representatives.
//
// Each item with a vector is compared only to the first member of every
// cluster created so far and joins the best cluster at or above the
// threshold, otherwise it founds a new one. The result therefore depends on
// input order and is not transitive: an item may miss a cluster whose later
// members would have matched it. Cost is O(n*k) for k clusters.
package clustering

import (
	"sort"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/similarity"
)

// Uncategorized groups items without a category in the fallback path.
const Uncategorized = "uncategorized"

// Mode reports which grouping path produced a result.
type Mode string

const (
	ModeVector   Mode = "vector"
	ModeCategory Mode = "category"
)

var themeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kgmatch:themes"))

// Cluster is a group of items. MemberIDs are in discovery order; the first
// member is the representative.
type Cluster struct {
	ID        string
	Name      string
	MemberIDs []string

	members []int
}

// Count returns the number of members.
func (c Cluster) Count() int { return len(c.MemberIDs) }

// Representative returns the id of the first member.
func (c Cluster) Representative() string {
	if len(c.MemberIDs) == 0 {
		return ""
	}
	return c.MemberIDs[0]
}

// Indexes returns the positions of the members in the input slice.
func (c Cluster) Indexes() []int { return c.members }

// Result is the output of Group.
type Result struct {
	Clusters []Cluster
	Mode     Mode
	// Skipped counts items without a vector that were left out because
	// other items carried vectors.
	Skipped int
}

// Group clusters items at the given threshold. Items without a vector are
// ignored unless no item has one, in which case items are grouped by
// category. Clusters are returned by descending size, ties in discovery
// order. Threshold validation is the caller's job.
func Group(items []apptype.Item, threshold float64, opts Options) Result {
	if len(items) == 0 {
		return Result{Clusters: []Cluster{}, Mode: ModeVector}
	}

	withVec := make([]int, 0, len(items))
	for i, it := range items {
		if len(it.Embedding) > 0 {
			withVec = append(withVec, i)
		}
	}

	var res Result
	if len(withVec) == 0 {
		res = Result{Clusters: byCategory(items), Mode: ModeCategory}
	} else {
		res = Result{
			Clusters: byVector(items, withVec, threshold),
			Mode:     ModeVector,
			Skipped:  len(items) - len(withVec),
		}
	}

	broad := threshold < opts.BroadThreshold
	for i := range res.Clusters {
		c := &res.Clusters[i]
		titles := make([]string, len(c.members))
		for j, idx := range c.members {
			titles[j] = items[idx].Title
		}
		c.Name = Label(titles, broad, opts)
		c.ID = uuid.NewSHA1(themeNamespace, []byte(string(res.Mode)+":"+c.Representative())).String()
	}

	sort.SliceStable(res.Clusters, func(i, j int) bool {
		return res.Clusters[i].Count() > res.Clusters[j].Count()
	})
	return res
}

func byVector(items []apptype.Item, withVec []int, threshold float64) []Cluster {
	clusters := make([]Cluster, 0)
	reps := make([][]float32, 0)

	for _, idx := range withVec {
		vec := items[idx].Embedding
		best := -1
		bestSim := 0.0
		for c, rep := range reps {
			s := similarity.Cosine(vec, rep)
			if s >= threshold && (best == -1 || s > bestSim) {
				best = c
				bestSim = s
			}
		}

		if best == -1 {
			clusters = append(clusters, Cluster{
				MemberIDs: []string{items[idx].ID},
				members:   []int{idx},
			})
			reps = append(reps, vec)
			continue
		}
		clusters[best].MemberIDs = append(clusters[best].MemberIDs, items[idx].ID)
		clusters[best].members = append(clusters[best].members, idx)
	}
	return clusters
}

func byCategory(items []apptype.Item) []Cluster {
	clusters := make([]Cluster, 0)
	pos := make(map[string]int)
	for i, it := range items {
		key := it.CategoryID
		if key == "" {
			key = Uncategorized
		}
		c, ok := pos[key]
		if !ok {
			c = len(clusters)
			pos[key] = c
			clusters = append(clusters, Cluster{})
		}
		clusters[c].MemberIDs = append(clusters[c].MemberIDs, it.ID)
		clusters[c].members = append(clusters[c].members, i)
	}
	return clusters
}
