package main

import (
	"context"
	"fmt"
	"time"

	"github.com/honeycombio/libhoney-go"
)

// SinkLibhoney sends batches through libhoney. libhoney is asynchronous, so
// Send flushes the client and then waits for one response per event to find
// out whether the batch made it.
type SinkLibhoney struct {
	client  *libhoney.Client
	timeout time.Duration
	log     Logger
}

// make sure it implements Sink
var _ Sink = (*SinkLibhoney)(nil)

func NewSinkLibhoney(log Logger, opts *Options) (*SinkLibhoney, error) {
	client, err := libhoney.NewClient(libhoney.ClientConfig{
		APIKey:  opts.Telemetry.APIKey,
		Dataset: opts.Telemetry.Dataset,
		APIHost: opts.apihost.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create libhoney client: %w", err)
	}
	return &SinkLibhoney{
		client:  client,
		timeout: opts.Output.Timeout,
		log:     log,
	}, nil
}

func (s *SinkLibhoney) Send(ctx context.Context, batch []DataPoint) error {
	sent := 0
	for i, dp := range batch {
		ev := s.client.NewEvent()
		ev.Timestamp = dp.Timestamp
		ev.Metadata = i
		if err := ev.Add(dp.Fields()); err != nil {
			return fmt.Errorf("adding fields to event %d: %w", i, err)
		}
		if err := ev.Send(); err != nil {
			return fmt.Errorf("queueing event %d: %w", i, err)
		}
		sent++
	}
	s.client.Flush()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	responses := s.client.TxResponses()
	var failed int
	var lastErr error
	for received := 0; received < sent; received++ {
		select {
		case resp := <-responses:
			// a rejected batch carries both the status and an error
			switch {
			case resp.StatusCode != 0 && (resp.StatusCode < 200 || resp.StatusCode > 299):
				failed++
				lastErr = &BatchError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
			case resp.Err != nil:
				failed++
				lastErr = resp.Err
			}
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d of %d responses: %w", sent-received, sent, ctx.Err())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d events rejected: %w", failed, sent, lastErr)
	}
	s.log.Debug("libhoney accepted %d events\n", sent)
	return nil
}

func (s *SinkLibhoney) Close() {
	s.client.Close()
}
