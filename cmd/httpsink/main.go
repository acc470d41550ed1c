package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgryski/go-wyhash"
	"github.com/jessevdk/go-flags"
)

// Options defines the command line arguments
type Options struct {
	Port     int     `long:"port" description:"Port number to listen on for HTTP" default:"8889"`
	FailRate float64 `long:"failrate" description:"fraction of batches to reject with a 503, for testing failure handling" default:"0"`
	Seed     string  `long:"seed" description:"seed for the failure injection" default:"httpsink"`
}

func initHTTPReceiver(ctx context.Context, opts Options, rc *Receiver) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           rc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on port %d", opts.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error during server shutdown: %v", err)
		}
	}()
}

func main() {
	var opts Options

	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = `[OPTIONS]

	httpsink is a local stand-in for the Honeycomb batch events API. Point
	metricgen at it with --host=local. It accepts POST /1/batch/{dataset}
	(optionally gzip or zstd encoded), counts events and distinct series, and
	also accepts OTLP/HTTP traces on /v1/traces for --selftrace=http.
	`
	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.Fatalf("Error parsing flags: %v", err)
	}
	if opts.FailRate < 0 || opts.FailRate > 1 {
		log.Fatalf("--failrate must be between 0 and 1")
	}

	log.Printf("Starting HTTP sink server on port %d\n", opts.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc := NewReceiver(opts.FailRate, wyhash.Hash([]byte(opts.Seed), 0))
	initHTTPReceiver(ctx, opts, rc)

	<-ctx.Done()

	fmt.Println()
	rc.Summary().Print()
	log.Println("Shutting down gracefully...")
}
