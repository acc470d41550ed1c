package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// make sure it implements Sink
var _ Sink = (*SinkPrint)(nil)

func ft(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05Z")
}

// SinkPrint writes every point to the log instead of sending it anywhere.
type SinkPrint struct {
	batches int
	points  int
	log     Logger
}

func NewSinkPrint(log Logger, opts *Options) Sink {
	return &SinkPrint{log: log}
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, labels[k])
	}
	return strings.Join(parts, ",")
}

func (t *SinkPrint) Send(ctx context.Context, batch []DataPoint) error {
	t.batches++
	for _, dp := range batch {
		t.points++
		t.log.Printf("%s %-9s %s=%g {%s}\n", ft(dp.Timestamp), dp.Kind, dp.Name, dp.Value, formatLabels(dp.Labels))
	}
	return nil
}

func (t *SinkPrint) Close() {
	t.log.Warn("sink printed %d points in %d batches\n", t.points, t.batches)
}
