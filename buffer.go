package main

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize  = 100
	DefaultBatchDelay = 100 * time.Millisecond
)

type BufferOptions struct {
	BatchSize int
	// BatchDelay is the pause between consecutive batch sends.
	BatchDelay time.Duration
	Stats      *Stats
}

// FlushReport summarizes one Flush call.
type FlushReport struct {
	Points    int
	Batches   int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// Buffer holds generated points until they are flushed to a Sink.
//
// Delivery is best effort: a flush always empties the buffer, and a batch
// that fails is logged and dropped rather than retried.
type Buffer struct {
	mut       sync.Mutex
	points    []DataPoint
	sink      Sink
	batchSize int
	limiter   *rate.Limiter
	stats     *Stats
	log       Logger
}

// make sure it implements Recorder
var _ Recorder = (*Buffer)(nil)

func NewBuffer(sink Sink, log Logger, opts BufferOptions) *Buffer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	limit := rate.Inf
	if opts.BatchDelay > 0 {
		limit = rate.Every(opts.BatchDelay)
	}
	return &Buffer{
		sink:      sink,
		batchSize: opts.BatchSize,
		limiter:   rate.NewLimiter(limit, 1),
		stats:     opts.Stats,
		log:       log,
	}
}

func (b *Buffer) Add(dp DataPoint) {
	b.mut.Lock()
	b.points = append(b.points, dp)
	b.mut.Unlock()
}

func (b *Buffer) Len() int {
	b.mut.Lock()
	defer b.mut.Unlock()
	return len(b.points)
}

// take empties the buffer and returns what was in it.
func (b *Buffer) take() []DataPoint {
	b.mut.Lock()
	defer b.mut.Unlock()
	points := b.points
	b.points = nil
	return points
}

// Flush sends everything in the buffer in batches of at most BatchSize, in
// the order the points were added. Failures are reported, never returned.
func (b *Buffer) Flush(ctx context.Context) FlushReport {
	points := b.take()
	if len(points) == 0 {
		return FlushReport{}
	}
	b.stats.BufferSize(b.Len())

	start := time.Now()
	nbatches := (len(points) + b.batchSize - 1) / b.batchSize
	report := FlushReport{Points: len(points), Batches: nbatches}

	tracer := otel.Tracer(ResourceLibrary, trace.WithInstrumentationVersion(ResourceVersion))
	ctx, span := tracer.Start(ctx, "flush", trace.WithAttributes(
		attribute.Int("flush.points", len(points)),
		attribute.Int("flush.batches", nbatches),
	))
	defer span.End()

	b.log.Info("exporting %d data points in %d batches\n", len(points), nbatches)
	for i := 0; i < nbatches; i++ {
		lo := i * b.batchSize
		hi := lo + b.batchSize
		if hi > len(points) {
			hi = len(points)
		}
		batch := points[lo:hi]

		err := b.sendBatch(ctx, tracer, i, batch)
		b.stats.BatchSent(err == nil, len(batch))
		if err != nil {
			report.Failed++
			b.log.Error("failed to export batch %d/%d (%d events): %s\n", i+1, nbatches, len(batch), err)
			continue
		}
		report.Succeeded++
		b.log.Debug("exported batch %d/%d: %d events\n", i+1, nbatches, len(batch))
	}

	report.Duration = time.Since(start)
	b.stats.Flushed(report.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("flush.succeeded", report.Succeeded),
		attribute.Int("flush.failed", report.Failed),
	)
	if report.Failed > 0 {
		span.SetStatus(codes.Error, "some batches failed")
	}
	b.log.Info("export completed: %d/%d batches successful\n", report.Succeeded, nbatches)
	return report
}

func (b *Buffer) sendBatch(ctx context.Context, tracer trace.Tracer, index int, batch []DataPoint) error {
	ctx, span := tracer.Start(ctx, "send_batch", trace.WithAttributes(
		attribute.Int("batch.index", index),
		attribute.Int("batch.size", len(batch)),
	))
	defer span.End()

	err := b.limiter.Wait(ctx)
	if err == nil {
		err = b.sink.Send(ctx, batch)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
