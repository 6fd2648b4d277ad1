package matching

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/apptype"
)

func ent(id, partition string, vec ...float32) apptype.Entity {
	return apptype.Entity{ID: id, Name: "name-" + id, EntityType: "concept", Partition: partition, Embedding: vec}
}

func TestMatch_AllPairsScenario(t *testing.T) {
	a := []apptype.Entity{ent("x", apptype.PartitionA, 1, 0, 0)}
	b := []apptype.Entity{ent("y", apptype.PartitionB, 1, 0, 0), ent("z", apptype.PartitionB, 0, 1, 0)}

	res, err := Match(nil, a, b, Options{Threshold: 0.5, TopK: 5})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "x", res.Matches[0].EntityAID)
	assert.Equal(t, "y", res.Matches[0].EntityBID)
	assert.Equal(t, "name-y", res.Matches[0].EntityBName)
	assert.InDelta(t, 1.0, res.Matches[0].Similarity, 1e-9)
	assert.Equal(t, 1, res.TotalFound)
	assert.Equal(t, 2, res.PairsScored)
}

func TestMatch_QueryWithoutEmbedding(t *testing.T) {
	q := ent("q", apptype.PartitionA)
	res, err := Match(&q, nil, []apptype.Entity{ent("y", apptype.PartitionB, 1)}, Options{Threshold: 0.5, TopK: 5})
	require.ErrorIs(t, err, ErrMissingEmbedding)
	assert.Empty(t, res.Matches)
}

func TestMatch_QueryUnknownPartition(t *testing.T) {
	q := ent("q", "C", 1)
	_, err := Match(&q, nil, nil, Options{})
	require.ErrorIs(t, err, ErrUnknownPartition)
}

func TestMatch_SingleQueryFromPartitionB(t *testing.T) {
	a := []apptype.Entity{
		ent("a1", apptype.PartitionA, 1, 0),
		ent("a2", apptype.PartitionA),
		ent("a3", apptype.PartitionA, 0.9, 0.1),
	}
	q := ent("b1", apptype.PartitionB, 1, 0)

	res, err := Match(&q, a, nil, Options{Threshold: 0.5, TopK: 10})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	// naming follows partition tags, not call direction
	assert.Equal(t, "a1", res.Matches[0].EntityAID)
	assert.Equal(t, "b1", res.Matches[0].EntityBID)
	assert.Equal(t, "a3", res.Matches[1].EntityAID)
	assert.Equal(t, 2, res.PairsScored)
}

func TestMatch_SingleQueryTopKAndTotal(t *testing.T) {
	b := make([]apptype.Entity, 0)
	for i := 0; i < 8; i++ {
		b = append(b, ent("b"+strconv.Itoa(i), apptype.PartitionB, 1, float32(i)*0.05))
	}
	q := ent("q", apptype.PartitionA, 1, 0)

	res, err := Match(&q, nil, b, Options{Threshold: 0.9, TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, 8, res.TotalFound)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, []string{"b0", "b1", "b2"}, []string{res.Matches[0].EntityBID, res.Matches[1].EntityBID, res.Matches[2].EntityBID})
}

func TestMatch_TiesKeepScanOrder(t *testing.T) {
	b := []apptype.Entity{
		ent("first", apptype.PartitionB, 2, 0),
		ent("second", apptype.PartitionB, 1, 0),
		ent("third", apptype.PartitionB, 3, 0),
	}
	q := ent("q", apptype.PartitionA, 1, 0)
	res, err := Match(&q, nil, b, Options{Threshold: 0.5, TopK: 2})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "first", res.Matches[0].EntityBID)
	assert.Equal(t, "second", res.Matches[1].EntityBID)
}

func TestMatch_MissingVectorsDoNotAffectOtherPairs(t *testing.T) {
	a := []apptype.Entity{ent("a1", apptype.PartitionA, 1, 0), ent("a2", apptype.PartitionA, 0, 1)}
	b := []apptype.Entity{ent("b1", apptype.PartitionB, 1, 0.1), ent("b2", apptype.PartitionB, 0.1, 1)}

	base, err := Match(nil, a, b, Options{Threshold: 0.5, TopK: 5})
	require.NoError(t, err)

	withGaps := append([]apptype.Entity{ent("gap", apptype.PartitionA)}, a...)
	bGaps := append(append([]apptype.Entity{}, b...), ent("gapb", apptype.PartitionB))
	got, err := Match(nil, withGaps, bGaps, Options{Threshold: 0.5, TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, base.Matches, got.Matches)
}

func TestMatch_DimensionMismatchScoresZero(t *testing.T) {
	a := []apptype.Entity{ent("a", apptype.PartitionA, 1, 0)}
	b := []apptype.Entity{ent("b", apptype.PartitionB, 1, 0, 0)}
	res, err := Match(nil, a, b, Options{Threshold: 0.1, TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Matches)

	res, err = Match(nil, a, b, Options{Threshold: 0, TopK: 5})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 0.0, res.Matches[0].Similarity)
}

func TestMatch_PartitionLimits(t *testing.T) {
	a := []apptype.Entity{
		ent("a0", apptype.PartitionA),
		ent("a1", apptype.PartitionA, 1, 0),
		ent("a2", apptype.PartitionA, 1, 0),
		ent("a3", apptype.PartitionA, 1, 0),
	}
	b := []apptype.Entity{ent("b1", apptype.PartitionB, 1, 0), ent("b2", apptype.PartitionB, 1, 0)}

	res, err := Match(nil, a, b, Options{Threshold: 0.5, TopK: 5, LimitA: 2, LimitB: 1})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	for _, m := range res.Matches {
		assert.Contains(t, []string{"a1", "a2"}, m.EntityAID)
		assert.Equal(t, "b1", m.EntityBID)
	}
	assert.Equal(t, 2, res.PairsScored)
}

func TestMatch_AllPairsProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := randomEntities(rng, apptype.PartitionA, 120, 12)
	b := randomEntities(rng, apptype.PartitionB, 90, 12)
	opts := Options{Threshold: 0.8, TopK: 4}

	serial, err := Match(nil, a, b, opts)
	require.NoError(t, err)

	opts.ParallelPairs = 1
	parallel, err := Match(nil, a, b, opts)
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)

	perA := make(map[string]int)
	for i, m := range serial.Matches {
		assert.GreaterOrEqual(t, m.Similarity, opts.Threshold)
		if i > 0 {
			assert.LessOrEqual(t, m.Similarity, serial.Matches[i-1].Similarity)
		}
		perA[m.EntityAID]++
	}
	for id, n := range perA {
		assert.LessOrEqual(t, n, opts.TopK, id)
	}
	assert.GreaterOrEqual(t, serial.TotalFound, len(serial.Matches))
}

func TestMatch_SingleQueryProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	b := randomEntities(rng, apptype.PartitionB, 300, 8)
	q := randomEntities(rng, apptype.PartitionA, 1, 8)[0]

	for _, topK := range []int{1, 5, 50} {
		res, err := Match(&q, nil, b, Options{Threshold: 0.7, TopK: topK})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Matches), topK)
		for i, m := range res.Matches {
			assert.GreaterOrEqual(t, m.Similarity, 0.7)
			if i > 0 {
				assert.LessOrEqual(t, m.Similarity, res.Matches[i-1].Similarity)
			}
		}
	}
}

func randomEntities(rng *rand.Rand, partition string, n, dims int) []apptype.Entity {
	out := make([]apptype.Entity, n)
	for i := range out {
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		out[i] = ent(partition+strconv.Itoa(i), partition, vec...)
	}
	return out
}

func BenchmarkMatch_AllPairs(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	as := randomEntities(rng, apptype.PartitionA, 1000, 128)
	bs := randomEntities(rng, apptype.PartitionB, 1000, 128)
	opts := Options{Threshold: 0.75, TopK: 10, ParallelPairs: DefaultParallelPairs}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Match(nil, as, bs, opts); err != nil {
			b.Fatal(err)
		}
	}
}
