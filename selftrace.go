package main

import (
	"context"
	"crypto/tls"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"
)

// OtelLogger adapts our Logger for the otel error handler.
type OtelLogger struct {
	Logger
}

func (l OtelLogger) Handle(err error) {
	l.Logger.Warn("self-tracing: %v\n", err)
}

// setupSelfTracing installs a global tracer provider so that flushes and
// batch sends are traced to opts.SelfTrace.Dataset. With protocol "none" it
// leaves the no-op provider in place. The returned func flushes and shuts
// the exporter down.
func setupSelfTracing(log Logger, opts *Options) func() {
	var client otlptrace.Client
	switch opts.SelfTrace.Protocol {
	case "grpc":
		client = setupOTELGRPCClient(opts)
	case "http":
		client = setupOTELHTTPClient(opts)
	default:
		return func() {}
	}

	exporter, err := otlptrace.New(context.Background(), client)
	if err != nil {
		log.Fatal("failure configuring otel trace exporter: %v\n", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(exporter)
	otel.SetErrorHandler(OtelLogger{log})
	otel.SetTracerProvider(sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bsp),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(opts.SelfTrace.Dataset),
			semconv.ServiceVersion(ResourceVersion),
		)),
	))
	log.Info("self-tracing to %s over %s as %s\n", opts.selftracehost.Host, opts.SelfTrace.Protocol, opts.SelfTrace.Dataset)

	return func() {
		_ = bsp.Shutdown(context.Background())
		_ = exporter.Shutdown(context.Background())
	}
}

func selfTraceHeaders(opts *Options) map[string]string {
	return map[string]string{
		"x-honeycomb-team":    opts.Telemetry.APIKey,
		"x-honeycomb-dataset": opts.SelfTrace.Dataset,
	}
}

func setupOTELHTTPClient(opts *Options) otlptrace.Client {
	options := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(opts.selftracehost.Host),
		otlptracehttp.WithHeaders(selfTraceHeaders(opts)),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if opts.selftracehost.Scheme == "http" {
		options = append(options, otlptracehttp.WithInsecure())
	} else {
		options = append(options, otlptracehttp.WithTLSClientConfig(&tls.Config{}))
	}
	return otlptracehttp.NewClient(options...)
}

func setupOTELGRPCClient(opts *Options) otlptrace.Client {
	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.selftracehost.Host),
		otlptracegrpc.WithHeaders(selfTraceHeaders(opts)),
		otlptracegrpc.WithCompressor(gzip.Name),
	}
	if opts.selftracehost.Scheme == "http" {
		options = append(options, otlptracegrpc.WithInsecure())
	} else {
		options = append(options, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	return otlptracegrpc.NewClient(options...)
}
