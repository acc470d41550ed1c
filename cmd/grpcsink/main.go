package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	cuckoo "github.com/panmari/cuckoofilter"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	_ "google.golang.org/grpc/encoding/gzip"
)

// Options defines the command line arguments
type Options struct {
	Port int `long:"port" description:"Port number to listen on for grpc" default:"4317"`
}

const (
	DefaultMaxSendMsgSize        = 4 * 1024 * 1024  // 4 MB
	DefaultMaxRecvMsgSize        = 15 * 1024 * 1024 // 15 MB
	DefaultMaxConnectionIdle     = 30 * time.Minute
	DefaultMaxConnectionAge      = time.Hour
	DefaultMaxConnectionAgeGrace = 5 * time.Minute
	DefaultKeepAlive             = 2 * time.Minute
	DefaultKeepAliveTimeout      = 20 * time.Second
)

// TraceServer receives metricgen's self traces and keeps a tally of its flushes.
type TraceServer struct {
	mu         sync.Mutex
	traces     *cuckoo.Filter
	traceCount int
	spanCount  int
	flushes    int
	succeeded  int64
	failed     int64
	datasets   map[string]int
	collectortrace.UnimplementedTraceServiceServer
}

func NewTraceServer() *TraceServer {
	return &TraceServer{
		traces:   cuckoo.NewFilter(1000000),
		datasets: make(map[string]int),
	}
}

func (t *TraceServer) Export(ctx context.Context, req *collectortrace.ExportTraceServiceRequest) (*collectortrace.ExportTraceServiceResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	if len(md.Get("x-honeycomb-team")) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing x-honeycomb-team header")
	}
	dataset := "unknown"
	if ds := md.Get("x-honeycomb-dataset"); len(ds) > 0 {
		dataset = ds[0]
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, resource := range req.GetResourceSpans() {
		for _, scope := range resource.GetScopeSpans() {
			for _, span := range scope.GetSpans() {
				t.spanCount++
				t.datasets[dataset]++
				traceID := span.GetTraceId()
				if !t.traces.Lookup(traceID) {
					t.traces.Insert(traceID)
					t.traceCount++
				}
				if span.GetName() != "flush" {
					continue
				}
				t.flushes++
				for _, kv := range span.GetAttributes() {
					switch kv.GetKey() {
					case "flush.succeeded":
						t.succeeded += kv.GetValue().GetIntValue()
					case "flush.failed":
						t.failed += kv.GetValue().GetIntValue()
					}
				}
			}
		}
	}

	return &collectortrace.ExportTraceServiceResponse{}, nil
}

func (t *TraceServer) Report() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%d traces, %d spans received this session; %d flushes sent %d batches (%d failed); spans by dataset: %v",
		t.traceCount, t.spanCount, t.flushes, t.succeeded+t.failed, t.failed, t.datasets)
}

// initGRPCReceiver initializes and starts a trace server on localhost with the specified options
func initGRPCReceiver(ctx context.Context, opts Options) (*TraceServer, error) {
	addr := fmt.Sprintf("localhost:%d", opts.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	serverOpts := []grpc.ServerOption{
		grpc.MaxSendMsgSize(DefaultMaxSendMsgSize),
		grpc.MaxRecvMsgSize(DefaultMaxRecvMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     DefaultMaxConnectionIdle,
			MaxConnectionAge:      DefaultMaxConnectionAge,
			MaxConnectionAgeGrace: DefaultMaxConnectionAgeGrace,
			Time:                  DefaultKeepAlive,
			Timeout:               DefaultKeepAliveTimeout,
		}),
	}
	srv := grpc.NewServer(serverOpts...)

	traceServer := NewTraceServer()
	collectortrace.RegisterTraceServiceServer(srv, traceServer)

	go func() {
		log.Printf("gRPC server listening on %s", addr)
		if err := srv.Serve(lis); err != nil {
			log.Printf("gRPC server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("Stopping gRPC server...")
		srv.GracefulStop()
	}()

	return traceServer, nil
}

func main() {
	var opts Options

	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = `[OPTIONS]

	grpcsink receives metricgen's self traces over OTLP/gRPC (--selftrace=grpc
	--selftracehost=http://localhost:4317) and reports how many flushes and
	batches they describe.
	`
	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatalf("Error parsing flags: %v", err)
	}

	log.Printf("Starting sink server on port %d\n", opts.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ts, err := initGRPCReceiver(ctx, opts)
	if err != nil {
		log.Fatalf("Failed to start gRPC receiver: %v", err)
	}

	<-ctx.Done()

	fmt.Printf("\n%s\n", ts.Report())
	log.Println("Shutting down gracefully...")
}
