package main

import (
	"log"
	"sync"
	"time"
)

// EventRateTracker tracks events received per second
type EventRateTracker struct {
	mu             sync.RWMutex
	counts         map[int64]int // unix second to event count
	startTime      time.Time
	totalEvents    int
	lastReportTime time.Time
	reportInterval time.Duration
	now            func() time.Time
}

func NewEventRateTracker() *EventRateTracker {
	now := time.Now()
	return &EventRateTracker{
		counts:         make(map[int64]int),
		startTime:      now,
		lastReportTime: now,
		reportInterval: 5 * time.Second,
		now:            time.Now,
	}
}

// Track adds count events to the current second
func (t *EventRateTracker) Track(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.counts[now.Unix()] += count
	t.totalEvents += count

	if now.Sub(t.lastReportTime) >= t.reportInterval {
		t.reportStats()
		t.lastReportTime = now
		t.prune(now)
	}
}

// prune forgets seconds older than the widest reporting window
func (t *EventRateTracker) prune(now time.Time) {
	cutoff := now.Add(-time.Minute).Unix()
	for ts := range t.counts {
		if ts < cutoff {
			delete(t.counts, ts)
		}
	}
}

// rate returns the average events/second over the last n seconds; callers hold the lock
func (t *EventRateTracker) rate(seconds int) float64 {
	now := t.now()
	cutoff := now.Add(-time.Duration(seconds) * time.Second).Unix()

	var total int
	for ts, count := range t.counts {
		if ts > cutoff {
			total += count
		}
	}

	// with less than n seconds of data, use what we have
	actual := int64(seconds)
	elapsed := now.Unix() - t.startTime.Unix()
	if elapsed < actual {
		actual = max(elapsed, 1)
	}
	return float64(total) / float64(actual)
}

func (t *EventRateTracker) Rate(seconds int) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rate(seconds)
}

func (t *EventRateTracker) Total() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalEvents
}

func (t *EventRateTracker) reportStats() {
	log.Printf("Events per second: %.2f (1s) | %.2f (10s) | %.2f (60s) | Total: %d",
		t.rate(1), t.rate(10), t.rate(60), t.totalEvents)
}
