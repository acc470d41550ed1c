package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	cuckoo "github.com/panmari/cuckoofilter"
	"github.com/vmihailenco/msgpack/v5"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/protobuf/encoding/protojson"
	"pgregory.net/rand"
)

const batchPrefix = "/1/batch/"

// fields every metric event carries that are not labels
var metricFields = map[string]bool{"metric_name": true, "value": true, "metric_type": true}

// batchEvent is one element of a batch events API request.
type batchEvent struct {
	Time time.Time      `json:"time" msgpack:"time"`
	Data map[string]any `json:"data" msgpack:"data"`
}

type eventStatus struct {
	Status int    `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Receiver stands in for the Honeycomb batch events API, and also accepts
// OTLP/HTTP traces so a generator's self traces can be pointed at it.
type Receiver struct {
	mu          sync.Mutex
	events      map[string]int
	batches     int
	rejected    int
	series      *cuckoo.Filter
	seriesCount int
	oldest      time.Time
	newest      time.Time

	traces     *cuckoo.Filter
	traceCount int
	flushes    int
	succeeded  int64
	failed     int64

	failRate float64
	rng      *rand.Rand
	rates    *EventRateTracker
}

func NewReceiver(failRate float64, seed uint64) *Receiver {
	return &Receiver{
		events:   make(map[string]int),
		series:   cuckoo.NewFilter(1000000),
		traces:   cuckoo.NewFilter(100000),
		failRate: failRate,
		rng:      rand.New(seed),
		rates:    NewEventRateTracker(),
	}
}

func (rc *Receiver) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(batchPrefix, rc.handleBatch)
	mux.HandleFunc("/v1/traces", rc.handleTraces)
	return mux
}

// body returns the request body with any Content-Encoding removed.
func body(r *http.Request) (io.ReadCloser, error) {
	switch r.Header.Get("Content-Encoding") {
	case "", "identity":
		return r.Body, nil
	case "gzip":
		return gzip.NewReader(r.Body)
	case "zstd":
		dec, err := zstd.NewReader(r.Body)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", r.Header.Get("Content-Encoding"))
	}
}

// seriesKey identifies a time series by metric name and its sorted labels.
func seriesKey(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		if !metricFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var sb strings.Builder
	fmt.Fprint(&sb, data["metric_name"])
	for _, k := range keys {
		fmt.Fprintf(&sb, ",%s=%v", k, data[k])
	}
	return sb.String()
}

func (rc *Receiver) shouldFail() bool {
	if rc.failRate <= 0 {
		return false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.rng.Float64() < rc.failRate
}

func (rc *Receiver) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	dataset := strings.TrimPrefix(r.URL.Path, batchPrefix)
	if dataset == "" || strings.Contains(dataset, "/") {
		http.Error(w, `{"error":"invalid dataset"}`, http.StatusNotFound)
		return
	}
	if r.Header.Get("X-Honeycomb-Team") == "" {
		http.Error(w, `{"error":"unknown API key - check your credentials"}`, http.StatusUnauthorized)
		return
	}
	if rc.shouldFail() {
		rc.mu.Lock()
		rc.rejected++
		rc.mu.Unlock()
		http.Error(w, `{"error":"injected failure"}`, http.StatusServiceUnavailable)
		return
	}

	reader, err := body(r)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	defer reader.Close()

	// libhoney sends msgpack, everything else JSON
	var events []batchEvent
	if r.Header.Get("Content-Type") == "application/msgpack" {
		err = msgpack.NewDecoder(reader).Decode(&events)
	} else {
		err = json.NewDecoder(reader).Decode(&events)
	}
	if err != nil {
		http.Error(w, `{"error":"request body is malformed and cannot be read"}`, http.StatusBadRequest)
		return
	}

	statuses := make([]eventStatus, len(events))
	rc.mu.Lock()
	rc.batches++
	rc.events[dataset] += len(events)
	for i, ev := range events {
		statuses[i] = eventStatus{Status: http.StatusAccepted}
		key := []byte(seriesKey(ev.Data))
		if !rc.series.Lookup(key) {
			rc.series.Insert(key)
			rc.seriesCount++
		}
		if rc.oldest.IsZero() || ev.Time.Before(rc.oldest) {
			rc.oldest = ev.Time
		}
		if ev.Time.After(rc.newest) {
			rc.newest = ev.Time
		}
	}
	rc.mu.Unlock()
	rc.rates.Track(len(events))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(statuses)
}

func (rc *Receiver) handleTraces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reader, err := body(r)
	if err != nil {
		http.Error(w, "Failed to decompress data: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}

	var req collectortrace.ExportTraceServiceRequest
	switch r.Header.Get("Content-Type") {
	case "application/json":
		err = protojson.Unmarshal(data, &req)
	default:
		err = proto.Unmarshal(data, &req)
	}
	if err != nil {
		http.Error(w, "Invalid trace data", http.StatusBadRequest)
		return
	}
	rc.processTraces(&req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("{}"))
}

// processTraces tallies the generator's flush spans.
func (rc *Receiver) processTraces(req *collectortrace.ExportTraceServiceRequest) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, resource := range req.GetResourceSpans() {
		for _, scope := range resource.GetScopeSpans() {
			for _, span := range scope.GetSpans() {
				traceID := span.GetTraceId()
				if !rc.traces.Lookup(traceID) {
					rc.traces.Insert(traceID)
					rc.traceCount++
				}
				if span.GetName() != "flush" {
					continue
				}
				rc.flushes++
				for _, kv := range span.GetAttributes() {
					switch kv.GetKey() {
					case "flush.succeeded":
						rc.succeeded += kv.GetValue().GetIntValue()
					case "flush.failed":
						rc.failed += kv.GetValue().GetIntValue()
					}
				}
			}
		}
	}
}

// Summary is what the receiver has seen so far.
type Summary struct {
	Events      map[string]int
	Batches     int
	Rejected    int
	Series      int
	Oldest      time.Time
	Newest      time.Time
	Traces      int
	Flushes     int
	FlushesOK   int64
	FlushesFail int64
}

func (rc *Receiver) Summary() Summary {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	events := make(map[string]int, len(rc.events))
	for k, v := range rc.events {
		events[k] = v
	}
	return Summary{
		Events:      events,
		Batches:     rc.batches,
		Rejected:    rc.rejected,
		Series:      rc.seriesCount,
		Oldest:      rc.oldest,
		Newest:      rc.newest,
		Traces:      rc.traceCount,
		Flushes:     rc.flushes,
		FlushesOK:   rc.succeeded,
		FlushesFail: rc.failed,
	}
}

func (s Summary) Print() {
	for dataset, n := range s.Events {
		log.Printf("dataset %s: %d events\n", dataset, n)
	}
	log.Printf("%d batches accepted, %d rejected, %d distinct series\n", s.Batches, s.Rejected, s.Series)
	if !s.Oldest.IsZero() {
		log.Printf("event times from %s to %s\n", s.Oldest.Format(time.RFC3339), s.Newest.Format(time.RFC3339))
	}
	if s.Traces > 0 {
		log.Printf("%d traces, %d flushes (%d batches ok, %d failed)\n", s.Traces, s.Flushes, s.FlushesOK, s.FlushesFail)
	}
}
