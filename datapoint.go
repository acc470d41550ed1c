package main

import "time"

type Kind int

const (
	KindCounter Kind = iota
	KindHistogram
	KindGauge
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindHistogram:
		return "histogram"
	case KindGauge:
		return "gauge"
	default:
		return "unknown"
	}
}

// DataPoint is a single labeled measurement waiting to be exported.
// Timestamp is the simulated instant it describes, not the time it was made.
// Points from the same request share their Labels map, so it must never be
// modified after the point is created.
type DataPoint struct {
	Name      string
	Value     float64
	Labels    map[string]string
	Timestamp time.Time
	Kind      Kind
}

// A Recorder accepts generated points.
type Recorder interface {
	Add(dp DataPoint)
}
