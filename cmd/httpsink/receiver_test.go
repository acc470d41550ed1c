package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	tracev1 "go.opentelemetry.io/proto/otlp/trace/v1"
)

const twoEvents = `[
  {"time":"2024-01-01T12:00:00Z","data":{"metric_name":"http_requests_total","value":1,"metric_type":"counter","service":"api-gateway","region":"us-east-1"}},
  {"time":"2024-01-01T12:01:00Z","data":{"metric_name":"http_requests_total","value":1,"metric_type":"counter","region":"us-east-1","service":"api-gateway"}}
]`

func post(t *testing.T, h http.Handler, path, encoding string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var withKey = map[string]string{"X-Honeycomb-Team": "abc", "Content-Type": "application/json"}

func TestReceiver_acceptsBatch(t *testing.T) {
	rc := NewReceiver(0, 1)
	w := post(t, rc.Handler(), "/1/batch/web-app-metrics", "", []byte(twoEvents), withKey)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var statuses []eventStatus
	if err := json.Unmarshal(w.Body.Bytes(), &statuses); err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 || statuses[0].Status != http.StatusAccepted {
		t.Errorf("unexpected response %v", statuses)
	}

	s := rc.Summary()
	if s.Events["web-app-metrics"] != 2 || s.Batches != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	// same labels in a different order are the same series
	if s.Series != 1 {
		t.Errorf("expected 1 series, got %d", s.Series)
	}
	if !s.Oldest.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)) || !s.Newest.Equal(time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)) {
		t.Errorf("time range %s to %s", s.Oldest, s.Newest)
	}
}

func TestReceiver_compressedBodies(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte(twoEvents))
	zw.Close()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	zs := enc.EncodeAll([]byte(twoEvents), nil)
	enc.Close()

	rc := NewReceiver(0, 1)
	for encoding, body := range map[string][]byte{"gzip": gz.Bytes(), "zstd": zs} {
		if w := post(t, rc.Handler(), "/1/batch/ds", encoding, body, withKey); w.Code != http.StatusOK {
			t.Errorf("%s: status %d: %s", encoding, w.Code, w.Body.String())
		}
	}
	if got := rc.Summary().Events["ds"]; got != 4 {
		t.Errorf("expected 4 events, got %d", got)
	}
	if w := post(t, rc.Handler(), "/1/batch/ds", "br", []byte(twoEvents), withKey); w.Code != http.StatusBadRequest {
		t.Errorf("unsupported encoding gave %d", w.Code)
	}
}

func TestReceiver_rejects(t *testing.T) {
	rc := NewReceiver(0, 1)
	h := rc.Handler()
	tests := []struct {
		name    string
		path    string
		body    string
		headers map[string]string
		want    int
	}{
		{"no api key", "/1/batch/ds", twoEvents, nil, http.StatusUnauthorized},
		{"no dataset", "/1/batch/", twoEvents, withKey, http.StatusNotFound},
		{"bad json", "/1/batch/ds", `{"not":"an array"}`, withKey, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := post(t, h, tt.path, "", []byte(tt.body), tt.headers); w.Code != tt.want {
				t.Errorf("status %d, want %d", w.Code, tt.want)
			}
		})
	}
	req := httptest.NewRequest(http.MethodGet, "/1/batch/ds", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET gave %d", w.Code)
	}
	if rc.Summary().Batches != 0 {
		t.Errorf("rejected requests were counted")
	}
}

func TestReceiver_failRate(t *testing.T) {
	rc := NewReceiver(1, 1)
	w := post(t, rc.Handler(), "/1/batch/ds", "", []byte(twoEvents), withKey)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status %d", w.Code)
	}
	if s := rc.Summary(); s.Rejected != 1 || s.Batches != 0 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func flushSpan(traceID byte, succeeded, failed int64) *tracev1.Span {
	intAttr := func(k string, v int64) *commonv1.KeyValue {
		return &commonv1.KeyValue{Key: k, Value: &commonv1.AnyValue{Value: &commonv1.AnyValue_IntValue{IntValue: v}}}
	}
	return &tracev1.Span{
		TraceId: bytes.Repeat([]byte{traceID}, 16),
		SpanId:  bytes.Repeat([]byte{traceID}, 8),
		Name:    "flush",
		Attributes: []*commonv1.KeyValue{
			intAttr("flush.succeeded", succeeded),
			intAttr("flush.failed", failed),
		},
	}
}

func TestReceiver_traces(t *testing.T) {
	req := &collectortrace.ExportTraceServiceRequest{
		ResourceSpans: []*tracev1.ResourceSpans{{
			ScopeSpans: []*tracev1.ScopeSpans{{
				Spans: []*tracev1.Span{
					flushSpan(1, 10, 1),
					flushSpan(2, 5, 0),
					{TraceId: bytes.Repeat([]byte{2}, 16), SpanId: []byte{9, 9, 9, 9, 9, 9, 9, 9}, Name: "send_batch"},
				},
			}},
		}},
	}
	data, err := proto.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write(data)
	zw.Close()

	rc := NewReceiver(0, 1)
	w := post(t, rc.Handler(), "/v1/traces", "gzip", gz.Bytes(), map[string]string{"Content-Type": "application/x-protobuf"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	s := rc.Summary()
	if s.Traces != 2 || s.Flushes != 2 || s.FlushesOK != 15 || s.FlushesFail != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestSeriesKey(t *testing.T) {
	got := seriesKey(map[string]any{
		"metric_name": "memory_usage_bytes",
		"value":       1.5e8,
		"metric_type": "gauge",
		"service":     "order-service",
	})
	if got != "memory_usage_bytes,service=order-service" {
		t.Errorf("got %q", got)
	}
	if strings.Contains(got, "gauge") {
		t.Errorf("metric type leaked into the series key")
	}
}

func TestEventRateTracker(t *testing.T) {
	tr := NewEventRateTracker()
	clock := time.Unix(1704110400, 0)
	tr.startTime = clock.Add(-time.Minute)
	tr.lastReportTime = clock
	tr.now = func() time.Time { return clock }

	tr.Track(30)
	clock = clock.Add(time.Second)
	tr.Track(10)
	if tr.Total() != 40 {
		t.Errorf("total %d", tr.Total())
	}
	if got := tr.Rate(1); got != 10 {
		t.Errorf("1s rate %v", got)
	}
	if got := tr.Rate(10); got != 4 {
		t.Errorf("10s rate %v", got)
	}
}

func TestReceiver_msgpackBatch(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	body, err := msgpack.Marshal([]batchEvent{
		{Time: ts, Data: map[string]any{"metric_name": "active_users", "value": 2000, "region": "us-east-1"}},
		{Time: ts, Data: map[string]any{"metric_name": "active_users", "value": 1500, "region": "us-west-2"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	rc := NewReceiver(0, 1)
	headers := map[string]string{"X-Honeycomb-Team": "abc", "Content-Type": "application/msgpack"}
	if w := post(t, rc.Handler(), "/1/batch/ds", "", body, headers); w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	s := rc.Summary()
	if s.Events["ds"] != 2 || s.Series != 2 || !s.Oldest.Equal(ts) {
		t.Errorf("unexpected summary %+v", s)
	}
}
