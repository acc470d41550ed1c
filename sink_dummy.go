package main

import (
	"context"
	"sync"
)

// SinkDummy accepts everything and only keeps count.
type SinkDummy struct {
	mut     sync.Mutex
	batches int
	points  int
	log     Logger
}

// make sure it implements Sink
var _ Sink = (*SinkDummy)(nil)

func NewSinkDummy(log Logger, opts *Options) *SinkDummy {
	return &SinkDummy{log: log}
}

func (t *SinkDummy) Send(ctx context.Context, batch []DataPoint) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.batches++
	t.points += len(batch)
	return nil
}

func (t *SinkDummy) Counts() (batches, points int) {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.batches, t.points
}

func (t *SinkDummy) Close() {
	batches, points := t.Counts()
	t.log.Info("sink received %d points in %d batches\n", points, batches)
}
