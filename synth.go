package main

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// metric names as they show up in the dataset
const (
	MetricRequestDuration = "http_request_duration_seconds"
	MetricRequests        = "http_requests_total"
	MetricErrors          = "http_errors_total"
	MetricQueryDuration   = "db_query_duration_seconds"
	MetricMemory          = "memory_usage_bytes"
	MetricActiveUsers     = "active_users"
)

const (
	minLatency        = 0.001
	maxRequestLatency = 30.0
	maxQueryLatency   = 10.0
)

var (
	methodTable = MustWeighted(
		[]string{"GET", "POST", "PUT", "DELETE"},
		[]int{70, 20, 8, 2})
	statusTable = MustWeighted(
		[]int{200, 201, 400, 401, 403, 404, 500, 502, 503},
		[]int{80, 5, 3, 2, 1, 4, 2, 1, 2})
	queryTypeTable = MustWeighted(
		[]string{"SELECT", "INSERT", "UPDATE", "DELETE"},
		[]int{70, 15, 10, 5})
)

type lognormal struct{ mu, sigma float64 }

var (
	latencyServerError = lognormal{1.5, 0.8}
	latencyFast        = lognormal{-1, 0.5}
	latencyNormal      = lognormal{0, 0.7}

	queryLatency = map[string]lognormal{
		"SELECT": {-2, 0.6},
		"INSERT": {-1.5, 0.4},
	}
	queryLatencyOther = lognormal{-1, 0.8}
)

// Synthesizer produces the data points for one simulated instant. Every call
// scales its volume by the traffic multiplier for that instant and stamps
// each point with it.
type Synthesizer struct {
	cat      *Catalog
	traffic  *TrafficModel
	rng      *Rng
	services []string
	backends []string
	regions  *Weighted[string]
	fast     map[string]bool
	memory   map[string]int64
}

// make sure it implements Generator
var _ Generator = (*Synthesizer)(nil)

func NewSynthesizer(cat *Catalog, traffic *TrafficModel, rng *Rng) (*Synthesizer, error) {
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	names := make([]string, len(cat.Regions))
	weights := make([]int, len(cat.Regions))
	for i, r := range cat.Regions {
		names[i] = r.Name
		weights[i] = r.Weight
	}
	regions, err := NewWeighted(names, weights)
	if err != nil {
		return nil, err
	}
	s := &Synthesizer{
		cat:      cat,
		traffic:  traffic,
		rng:      rng,
		backends: cat.backendServices(),
		regions:  regions,
		fast:     make(map[string]bool),
		memory:   make(map[string]int64),
	}
	for _, svc := range cat.Services {
		s.services = append(s.services, svc.Name)
		s.memory[svc.Name] = svc.BaseMemory
	}
	for _, ep := range cat.FastEndpoints {
		s.fast[ep] = true
	}
	return s, nil
}

// volume scales a base rate by the traffic multiplier and a uniform jitter.
// Zero is a perfectly good answer.
func (s *Synthesizer) volume(base int, mult, jitterLo, jitterHi float64) int {
	return int(math.Round(float64(base) * mult * s.rng.Uniform(jitterLo, jitterHi)))
}

func (s *Synthesizer) endpoints(service string) []string {
	for _, svc := range s.cat.Services {
		if svc.Name == service {
			return svc.Endpoints
		}
	}
	return nil
}

func (s *Synthesizer) requestLatency(status int, endpoint string) float64 {
	dist := latencyNormal
	switch {
	case status >= 500:
		dist = latencyServerError
	case s.fast[endpoint]:
		dist = latencyFast
	}
	return Clamp(s.rng.LogNormal(dist.mu, dist.sigma), minLatency, maxRequestLatency)
}

func (s *Synthesizer) GenerateRequests(rec Recorder, ts time.Time) int {
	n := s.volume(s.cat.RequestRate, s.traffic.Multiplier(ts), 0.8, 1.2)
	points := 0
	for i := 0; i < n; i++ {
		service := s.rng.Choice(s.services)
		endpoint := s.rng.Choice(s.endpoints(service))
		method := methodTable.Pick(s.rng)
		region := s.regions.Pick(s.rng)
		agent := s.rng.Choice(s.cat.UserAgents)
		status := statusTable.Pick(s.rng)
		latency := s.requestLatency(status, endpoint)

		labels := map[string]string{
			"service":          service,
			"endpoint":         endpoint,
			"method":           method,
			"status_code":      strconv.Itoa(status),
			"region":           region,
			"user_agent_class": ClassifyUserAgent(agent),
		}
		rec.Add(DataPoint{Name: MetricRequestDuration, Value: latency, Labels: labels, Timestamp: ts, Kind: KindHistogram})
		rec.Add(DataPoint{Name: MetricRequests, Value: 1, Labels: labels, Timestamp: ts, Kind: KindCounter})
		points += 2
		if status >= 400 {
			rec.Add(DataPoint{Name: MetricErrors, Value: 1, Labels: labels, Timestamp: ts, Kind: KindCounter})
			points++
		}
	}
	return points
}

func (s *Synthesizer) GenerateDatabase(rec Recorder, ts time.Time) int {
	n := s.volume(s.cat.QueryRate, s.traffic.Multiplier(ts), 0.9, 1.1)
	for i := 0; i < n; i++ {
		queryType := queryTypeTable.Pick(s.rng)
		table := s.rng.Choice(s.cat.Tables)
		dist, ok := queryLatency[queryType]
		if !ok {
			dist = queryLatencyOther
		}
		latency := Clamp(s.rng.LogNormal(dist.mu, dist.sigma), minLatency, maxQueryLatency)

		rec.Add(DataPoint{
			Name:  MetricQueryDuration,
			Value: latency,
			Labels: map[string]string{
				"query_type": queryType,
				"table":      table,
				"service":    s.rng.Choice(s.backends),
			},
			Timestamp: ts,
			Kind:      KindHistogram,
		})
	}
	return n
}

// GenerateSystem always emits exactly one memory gauge per service.
func (s *Synthesizer) GenerateSystem(rec Recorder, ts time.Time) int {
	for _, service := range s.services {
		mult := s.traffic.Multiplier(ts)
		usage := math.Trunc(float64(s.memory[service]) * (0.8 + 0.4*mult + 0.1*s.rng.Float()))
		rec.Add(DataPoint{
			Name:      MetricMemory,
			Value:     usage,
			Labels:    map[string]string{"service": service},
			Timestamp: ts,
			Kind:      KindGauge,
		})
	}
	return len(s.services)
}

func (s *Synthesizer) GenerateUsers(rec Recorder, ts time.Time) int {
	active := s.volume(s.cat.ActiveUsers, s.traffic.Multiplier(ts), 0.9, 1.1)
	for _, region := range s.cat.Regions {
		rec.Add(DataPoint{
			Name:      MetricActiveUsers,
			Value:     math.Trunc(float64(active) * region.UserShare),
			Labels:    map[string]string{"region": region.Name},
			Timestamp: ts,
			Kind:      KindGauge,
		})
	}
	return len(s.cat.Regions)
}

// ClassifyUserAgent buckets a user agent string into mobile, desktop or other.
func ClassifyUserAgent(ua string) string {
	switch {
	case strings.Contains(ua, "iPhone"), strings.Contains(ua, "Android"):
		return "mobile"
	case strings.Contains(ua, "Windows"), strings.Contains(ua, "Macintosh"):
		return "desktop"
	default:
		return "other"
	}
}
