package main

import (
	"math"
	"testing"
)

func TestRng_sameSeedSameSequence(t *testing.T) {
	a := NewRng("web-app-metrics")
	b := NewRng("web-app-metrics")
	for i := 0; i < 100; i++ {
		if x, y := a.Float(), b.Float(); x != y {
			t.Fatalf("draw %d differs: %v != %v", i, x, y)
		}
	}
	c := NewRng("something-else")
	same := 0
	a = NewRng("web-app-metrics")
	for i := 0; i < 100; i++ {
		if a.Float() == c.Float() {
			same++
		}
	}
	if same == 100 {
		t.Errorf("different seeds produced identical sequences")
	}
}

func TestRng_ranges(t *testing.T) {
	r := NewRng("ranges")
	for i := 0; i < 10000; i++ {
		if f := r.Float(); f < 0 || f >= 1 {
			t.Fatalf("Float out of range: %v", f)
		}
		if u := r.Uniform(0.8, 1.2); u < 0.8 || u >= 1.2 {
			t.Fatalf("Uniform out of range: %v", u)
		}
		if l := r.LogNormal(0, 0.7); l <= 0 {
			t.Fatalf("LogNormal not positive: %v", l)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, want float64
	}{
		{0.0000001, 0.001},
		{0.5, 0.5},
		{1e9, 30},
		{math.Inf(1), 30},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, 0.001, 30); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestNewWeighted_rejectsBadTables(t *testing.T) {
	tests := []struct {
		name    string
		items   []string
		weights []int
	}{
		{"empty", nil, nil},
		{"length mismatch", []string{"a", "b"}, []int{1}},
		{"zero weight", []string{"a", "b"}, []int{1, 0}},
		{"negative weight", []string{"a"}, []int{-3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWeighted(tt.items, tt.weights); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}

func TestMustWeighted_panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic")
		}
	}()
	MustWeighted([]string{"a"}, []int{0})
}

func TestWeighted_followsWeights(t *testing.T) {
	w := MustWeighted([]string{"GET", "POST", "PUT", "DELETE"}, []int{70, 20, 8, 2})
	r := NewRng("weights")
	counts := map[string]int{}
	const n = 100000
	for i := 0; i < n; i++ {
		counts[w.Pick(r)]++
	}
	want := map[string]float64{"GET": 0.70, "POST": 0.20, "PUT": 0.08, "DELETE": 0.02}
	for k, p := range want {
		got := float64(counts[k]) / n
		if math.Abs(got-p) > 0.01 {
			t.Errorf("%s picked %.3f of the time, want about %.2f", k, got, p)
		}
	}
	if len(counts) != 4 {
		t.Errorf("expected all four items to be picked, got %v", counts)
	}
}

func TestWeighted_singleItem(t *testing.T) {
	w := MustWeighted([]int{503}, []int{1})
	r := NewRng("single")
	for i := 0; i < 10; i++ {
		if got := w.Pick(r); got != 503 {
			t.Fatalf("got %d", got)
		}
	}
}

func BenchmarkWeighted_Pick(b *testing.B) {
	r := NewRng("bench")
	for i := 0; i < b.N; i++ {
		statusTable.Pick(r)
	}
}
