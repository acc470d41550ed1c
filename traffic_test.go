package main

import (
	"math"
	"testing"
	"time"
)

func mustTime(t testing.TB, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestTrafficModel_neverNegative(t *testing.T) {
	tm := NewTrafficModel(NewRng("never-negative"))
	start := mustTime(t, "2024-01-01T00:00:00Z")
	// two weeks in 7-minute steps covers every hour of every weekday
	for ts := start; ts.Before(start.AddDate(0, 0, 14)); ts = ts.Add(7 * time.Minute) {
		if m := tm.Multiplier(ts); m < 0 {
			t.Fatalf("multiplier at %s is %v", ts, m)
		}
	}
}

func TestTrafficModel_hourFactors(t *testing.T) {
	tm := NewTrafficModel(NewRng("hours"))
	// 2024-01-03 is a Wednesday; UTC hour = local hour + 5
	tests := []struct {
		name string
		ts   string
		want float64
	}{
		{"peak start", "2024-01-03T14:00:00Z", 1.5},
		{"afternoon peak", "2024-01-03T20:00:00Z", 1.5 + 0.3*math.Sin(6*math.Pi/12)},
		{"evening peak", "2024-01-04T00:00:00Z", 1.5 + 0.3*math.Sin(10*math.Pi/12)},
		{"early business", "2024-01-03T11:00:00Z", 1.0},
		{"lunch lull", "2024-01-03T18:00:00Z", 1.0 + 0.2*math.Sin(7*math.Pi/17)},
		{"late evening", "2024-01-04T04:00:00Z", 1.0 + 0.2*math.Sin(17*math.Pi/17)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tm.Multiplier(mustTime(t, tt.ts))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Multiplier(%s) = %v, want %v", tt.ts, got, tt.want)
			}
		})
	}
}

func TestTrafficModel_overnightNoise(t *testing.T) {
	tm := NewTrafficModel(NewRng("overnight"))
	// 07:00 UTC is 02:00 local
	ts := mustTime(t, "2024-01-03T07:00:00Z")
	seen := map[float64]bool{}
	for i := 0; i < 100; i++ {
		m := tm.Multiplier(ts)
		if m < 0.2 || m >= 0.3 {
			t.Fatalf("overnight multiplier %v out of [0.2, 0.3)", m)
		}
		seen[m] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected overnight multiplier to vary")
	}
}

func TestTrafficModel_weekendIsQuieter(t *testing.T) {
	tm := NewTrafficModel(NewRng("weekend"))
	// same UTC hour across all business hours: Wednesday/Thursday vs Saturday/Sunday
	for h := 11; h <= 28; h++ {
		weekday := mustTime(t, "2024-01-03T00:00:00Z").Add(time.Duration(h) * time.Hour)
		weekend := mustTime(t, "2024-01-06T00:00:00Z").Add(time.Duration(h) * time.Hour)
		wd, we := tm.Multiplier(weekday), tm.Multiplier(weekend)
		if !(we < wd) {
			t.Errorf("hour %d: weekend %v is not quieter than weekday %v", h, we, wd)
		}
		if math.Abs(we-0.6*wd) > 1e-9 {
			t.Errorf("hour %d: weekend %v should be 0.6 * weekday %v", h, we, wd)
		}
	}
}

func TestTrafficModel_Describe(t *testing.T) {
	tm := NewTrafficModel(NewRng("describe"))
	tests := map[string]string{
		"2024-01-03T15:00:00Z": "peak",
		"2024-01-03T11:00:00Z": "business",
		"2024-01-03T07:00:00Z": "overnight",
		"2024-01-06T15:00:00Z": "weekend peak",
	}
	for ts, want := range tests {
		if got := tm.Describe(mustTime(t, ts)); got != want {
			t.Errorf("Describe(%s) = %q, want %q", ts, got, want)
		}
	}
}

func TestLocalHour_wrapsAroundMidnight(t *testing.T) {
	if h := localHour(mustTime(t, "2024-01-03T02:00:00Z")); h != 21 {
		t.Errorf("localHour = %d, want 21", h)
	}
	// a non-UTC location must not change the answer
	ny := time.FixedZone("EST", -5*3600)
	if h := localHour(mustTime(t, "2024-01-03T02:00:00Z").In(ny)); h != 21 {
		t.Errorf("localHour in another zone = %d, want 21", h)
	}
}
