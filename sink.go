package main

import (
	"context"
	"fmt"
	"time"
)

// A Sink delivers one batch of points to wherever they're going. A non-nil
// error means the whole batch should be considered lost.
type Sink interface {
	Send(ctx context.Context, batch []DataPoint) error
	Close()
}

// Event is the Honeycomb batch API representation of a data point.
type Event struct {
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data"`
}

// Fields flattens the labels next to the metric fields. If a label collides
// with one of the metric fields, the metric field wins.
func (dp DataPoint) Fields() map[string]any {
	fields := make(map[string]any, len(dp.Labels)+3)
	for k, v := range dp.Labels {
		fields[k] = v
	}
	fields["metric_name"] = dp.Name
	fields["value"] = dp.Value
	fields["metric_type"] = dp.Kind.String()
	return fields
}

func (dp DataPoint) Event() Event {
	return Event{Time: dp.Timestamp.UTC(), Data: dp.Fields()}
}

func toEvents(batch []DataPoint) []Event {
	events := make([]Event, len(batch))
	for i, dp := range batch {
		events[i] = dp.Event()
	}
	return events
}

// BatchError is returned when the sink answered but didn't accept the batch.
type BatchError struct {
	StatusCode int
	Body       string
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("HTTP %d - %s", e.StatusCode, e.Body)
}
