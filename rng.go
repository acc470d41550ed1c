package main

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dgryski/go-wyhash"
	"pgregory.net/rand"
)

const seedSalt = 2467825690

// Rng is the single source of randomness for a run. It is seeded from a
// string so that a given dataset name produces the same data every time.
// It is not safe for concurrent use.
type Rng struct {
	rng *rand.Rand
}

func NewRng(s string) *Rng {
	return &Rng{rand.New(wyhash.Hash([]byte(s), seedSalt))}
}

// Float returns a uniform value in [0, 1).
func (r *Rng) Float() float64 {
	return r.rng.Float64()
}

// Uniform returns a uniform value in [lo, hi).
func (r *Rng) Uniform(lo, hi float64) float64 {
	return r.rng.Float64()*(hi-lo) + lo
}

func (r *Rng) Intn(n int) int {
	return r.rng.Intn(n)
}

func (r *Rng) Choice(a []string) string {
	return a[r.rng.Intn(len(a))]
}

// LogNormal draws from a log-normal distribution where mu and sigma are the
// mean and standard deviation of the underlying normal.
func (r *Rng) LogNormal(mu, sigma float64) float64 {
	return math.Exp(mu + sigma*r.rng.NormFloat64())
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Weighted is a categorical distribution over items with integer weights.
// The cumulative table is built once; each Pick is a single uniform draw and
// a binary search.
type Weighted[T any] struct {
	items []T
	cum   []int
	total int
}

var errEmptyWeights = errors.New("weighted choice needs at least one item")

func NewWeighted[T any](items []T, weights []int) (*Weighted[T], error) {
	if len(items) == 0 {
		return nil, errEmptyWeights
	}
	if len(items) != len(weights) {
		return nil, fmt.Errorf("weighted choice has %d items but %d weights", len(items), len(weights))
	}
	cum := make([]int, len(weights))
	total := 0
	for i, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("weight %d for item %d must be positive", w, i)
		}
		total += w
		cum[i] = total
	}
	return &Weighted[T]{items: items, cum: cum, total: total}, nil
}

// MustWeighted is NewWeighted for tables that are fixed in the source.
func MustWeighted[T any](items []T, weights []int) *Weighted[T] {
	w, err := NewWeighted(items, weights)
	if err != nil {
		panic(err)
	}
	return w
}

func (w *Weighted[T]) Pick(r *Rng) T {
	n := r.Intn(w.total)
	// first cumulative weight strictly greater than n
	i := sort.SearchInts(w.cum, n+1)
	return w.items[i]
}
