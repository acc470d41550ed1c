package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxErrorBody caps how much of a failed response we keep for the log.
const maxErrorBody = 1024

// SinkHoneycomb posts batches straight to the Honeycomb batch events API.
type SinkHoneycomb struct {
	endpoint    string
	apiKey      string
	compression string
	client      *http.Client
	zenc        *zstd.Encoder
	log         Logger
}

// make sure it implements Sink
var _ Sink = (*SinkHoneycomb)(nil)

func NewSinkHoneycomb(log Logger, opts *Options) (*SinkHoneycomb, error) {
	endpoint := opts.apihost.JoinPath("1", "batch", url.PathEscape(opts.Telemetry.Dataset))
	s := &SinkHoneycomb{
		endpoint:    endpoint.String(),
		apiKey:      opts.Telemetry.APIKey,
		compression: opts.Output.Compression,
		client:      &http.Client{Timeout: opts.Output.Timeout},
		log:         log,
	}
	if s.compression == "zstd" {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("unable to create zstd encoder: %w", err)
		}
		s.zenc = enc
	}
	return s, nil
}

func (s *SinkHoneycomb) encode(batch []DataPoint) ([]byte, error) {
	body, err := json.Marshal(toEvents(batch))
	if err != nil {
		return nil, err
	}
	switch s.compression {
	case "gzip":
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(body); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "zstd":
		return s.zenc.EncodeAll(body, nil), nil
	default:
		return body, nil
	}
}

func (s *SinkHoneycomb) Send(ctx context.Context, batch []DataPoint) error {
	body, err := s.encode(batch)
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Honeycomb-Team", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if s.compression == "gzip" || s.compression == "zstd" {
		req.Header.Set("Content-Encoding", s.compression)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &BatchError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	s.log.Debug("sent %d events to %s\n", len(batch), s.endpoint)
	return nil
}

func (s *SinkHoneycomb) Close() {
	if s.zenc != nil {
		s.zenc.Close()
	}
	s.client.CloseIdleConnections()
}
