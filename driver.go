package main

import (
	"context"
	"time"
)

// A Generator appends the points for one simulated instant to rec and
// returns how many it added. Each metric family has its own call.
type Generator interface {
	GenerateRequests(rec Recorder, ts time.Time) int
	GenerateDatabase(rec Recorder, ts time.Time) int
	GenerateSystem(rec Recorder, ts time.Time) int
	GenerateUsers(rec Recorder, ts time.Time) int
}

const (
	DefaultStep       = time.Minute
	DefaultFlushEvery = 100
	DefaultInterval   = 60 * time.Second
)

type DriverOptions struct {
	// Step is the simulated time between steps when backfilling.
	Step time.Duration
	// FlushEvery is the number of backfill steps between flushes.
	FlushEvery int
	// StepDelay is a real pause after each backfill step.
	StepDelay time.Duration
	// Interval is the wall-clock time between real-time steps.
	Interval time.Duration
	Stats    *Stats
}

// RunReport totals a Backfill or Realtime run.
type RunReport struct {
	Steps         int
	Points        int
	Flushes       int
	Batches       int
	FailedBatches int
}

func (r *RunReport) add(f FlushReport) {
	if f.Batches == 0 {
		return
	}
	r.Flushes++
	r.Batches += f.Batches
	r.FailedBatches += f.Failed
}

// Driver walks simulated time and feeds the generator's output into the
// buffer, flushing as it goes.
type Driver struct {
	gen    Generator
	buf    *Buffer
	opts   DriverOptions
	log    Logger
	phaser interface{ Describe(time.Time) string }
	now    func() time.Time
}

func NewDriver(gen Generator, buf *Buffer, log Logger, opts DriverOptions) *Driver {
	if opts.Step <= 0 {
		opts.Step = DefaultStep
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	d := &Driver{
		gen:  gen,
		buf:  buf,
		opts: opts,
		log:  log,
		now:  time.Now,
	}
	if s, ok := gen.(*Synthesizer); ok {
		d.phaser = s.traffic
	}
	return d
}

// Step runs every generator once for ts.
func (d *Driver) Step(ts time.Time) int {
	stats := d.opts.Stats
	n := d.gen.GenerateRequests(d.buf, ts)
	stats.Generated("requests", n)
	total := n

	n = d.gen.GenerateDatabase(d.buf, ts)
	stats.Generated("database", n)
	total += n

	n = d.gen.GenerateSystem(d.buf, ts)
	stats.Generated("system", n)
	total += n

	n = d.gen.GenerateUsers(d.buf, ts)
	stats.Generated("users", n)
	total += n

	stats.BufferSize(d.buf.Len())
	return total
}

func (d *Driver) describe(ts time.Time) string {
	if d.phaser == nil {
		return ""
	}
	return d.phaser.Describe(ts)
}

// sleep waits for dur or until ctx is done, and reports whether it's ok to continue.
func sleep(ctx context.Context, dur time.Duration) bool {
	if dur <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// flush drains the buffer even if ctx has been cancelled, so a run
// interrupted by a signal still delivers what it generated.
func (d *Driver) flush(ctx context.Context) FlushReport {
	return d.buf.Flush(context.WithoutCancel(ctx))
}

// Backfill generates points for every step in [start, end), flushing every
// FlushEvery steps and once more at the end.
func (d *Driver) Backfill(ctx context.Context, start, end time.Time) RunReport {
	var report RunReport
	total := int(end.Sub(start) / d.opts.Step)
	d.log.Info("generating metrics from %s to %s\n", ft(start), ft(end))
	d.log.Info("total intervals: %d (%s intervals)\n", total, d.opts.Step)

	for ts := start; ts.Before(end); ts = ts.Add(d.opts.Step) {
		report.Points += d.Step(ts)
		report.Steps++

		if report.Steps%d.opts.FlushEvery == 0 {
			progress := 100 * float64(report.Steps) / float64(max(total, 1))
			d.log.Info("progress: %.1f%% (%d/%d) at %s %s\n", progress, report.Steps, total, ft(ts), d.describe(ts))
			report.add(d.flush(ctx))
		}
		if !sleep(ctx, d.opts.StepDelay) {
			d.log.Info("backfill interrupted after %d intervals\n", report.Steps)
			break
		}
	}

	report.add(d.flush(ctx))
	d.log.Info("backfill completed: %d intervals, %d points, %d/%d batches failed\n",
		report.Steps, report.Points, report.FailedBatches, report.Batches)
	return report
}

// Realtime generates points for the current wall-clock time once per
// Interval until duration has passed or ctx is done. It flushes after every
// step.
func (d *Driver) Realtime(ctx context.Context, duration time.Duration) RunReport {
	var report RunReport
	d.log.Info("starting real-time generation for %s\n", duration)
	begin := d.now()

	for d.now().Sub(begin) < duration {
		ts := d.now().UTC()
		report.Points += d.Step(ts)
		report.Steps++
		d.log.Info("generated metrics at %s %s\n", ts.Format("15:04:05"), d.describe(ts))
		report.add(d.flush(ctx))

		if !sleep(ctx, d.opts.Interval) {
			d.log.Info("real-time generation interrupted\n")
			break
		}
	}

	report.add(d.flush(ctx))
	d.log.Info("real-time generation completed: %d steps, %d points\n", report.Steps, report.Points)
	return report
}
