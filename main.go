package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goware/urlx"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ResourceLibrary = "metricgen"
var ResourceVersion = "dev"

type Options struct {
	Telemetry struct {
		Host     string `long:"host" description:"the url of the host to receive the events (or honeycomb, dogfood, local)" default:"honeycomb"`
		Insecure bool   `long:"insecure" description:"use this for insecure http (not https) connections" yaml:",omitempty"`
		Dataset  string `long:"dataset" description:"sends all events to the given dataset" env:"HONEYCOMB_DATASET" default:"web-app-metrics"`
		APIKey   string `long:"apikey" description:"the honeycomb API key(*)" env:"HONEYCOMB_API_KEY" yaml:"-"`
	} `group:"Telemetry Options"`
	Time struct {
		Days       int           `long:"days" description:"days of historical data to generate, ending now" default:"35"`
		Start      string        `long:"start" description:"start of an explicit backfill range (RFC3339); overrides --days" yaml:",omitempty"`
		End        string        `long:"end" description:"end of an explicit backfill range (RFC3339, defaults to now)" yaml:",omitempty"`
		Realtime   int           `long:"realtime" description:"generate real-time data for N hours instead of backfilling" default:"0" yaml:",omitempty"`
		Step       time.Duration `long:"step" description:"simulated time between backfill steps" default:"1m"`
		Interval   time.Duration `long:"interval" description:"wall-clock time between real-time steps" default:"60s"`
		StepDelay  time.Duration `long:"stepdelay" description:"pause after each backfill step to avoid overwhelming the system" default:"10ms"`
		FlushEvery int           `long:"flushevery" description:"number of backfill steps between exports" default:"100"`
	} `group:"Time Options"`
	Output struct {
		Sender      string        `long:"sender" description:"type of sender" choice:"honeycomb" choice:"libhoney" choice:"print" choice:"dummy" default:"honeycomb"`
		BatchSize   int           `long:"batchsize" description:"maximum number of events in one batch" default:"100"`
		BatchDelay  time.Duration `long:"batchdelay" description:"pause between batch sends" default:"100ms"`
		Timeout     time.Duration `long:"timeout" description:"timeout for a single batch send" default:"30s"`
		Compression string        `long:"compression" description:"for honeycomb only, request body encoding" choice:"none" choice:"gzip" choice:"zstd" default:"none"`
	} `group:"Output Options"`
	SelfTrace struct {
		Protocol string `long:"selftrace" description:"trace metricgen's own exports over otlp" choice:"none" choice:"grpc" choice:"http" default:"none"`
		Host     string `long:"selftracehost" description:"where to send self traces (defaults to --host)" yaml:",omitempty"`
		Dataset  string `long:"selftracedataset" description:"service name / dataset for self traces" default:"metricgen"`
	} `group:"Self-tracing Options"`
	Global struct {
		LogLevel  string `long:"loglevel" description:"level of logging" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info"`
		DebugPort int    `long:"debugport" description:"port to listen on for pprof and /metrics(*)" default:"-1" yaml:"-"`
		Seed      string `long:"seed" description:"string seed for random number generator (defaults to dataset name)" yaml:",omitempty"`
		Config    string `long:"config" description:"name of config file to load(*)" default:"" yaml:"-"`
		WriteCfg  string `long:"writecfg" description:"write effective YAML config to the specified output file and quit(*)" default:"" yaml:"-"`
	} `group:"Global Options"`
	Catalog       *Catalog `yaml:"catalog,omitempty" no-flag:"true"`
	apihost       *url.URL
	selftracehost *url.URL
}

func newOptions() *Options {
	return &Options{}
}

func (o *Options) CopyStarredFieldsFrom(other *Options) {
	o.Telemetry.APIKey = other.Telemetry.APIKey
	o.Global.DebugPort = other.Global.DebugPort
	o.Global.Config = other.Global.Config
	o.Global.WriteCfg = other.Global.WriteCfg
}

func (o *Options) DebugLevel() int {
	switch o.Global.LogLevel {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelError
	}
}

func (o *Options) needsAPIKey() bool {
	return o.Output.Sender == "honeycomb" || o.Output.Sender == "libhoney"
}

// Validate catches configuration errors before anything is generated.
func (o *Options) Validate() error {
	if o.needsAPIKey() && o.Telemetry.APIKey == "" {
		return errors.New("honeycomb API key required. Provide via --apikey or set HONEYCOMB_API_KEY environment variable")
	}
	if o.Time.Realtime < 0 {
		return errors.New("--realtime must not be negative")
	}
	if o.Time.Realtime == 0 && o.Time.Start == "" && o.Time.Days < 1 {
		return errors.New("--days must be at least 1")
	}
	if o.Time.Step <= 0 || o.Time.Interval <= 0 {
		return errors.New("--step and --interval must be positive")
	}
	if o.Time.FlushEvery < 1 {
		return errors.New("--flushevery must be at least 1")
	}
	if o.Output.BatchSize < 1 {
		return errors.New("--batchsize must be at least 1")
	}
	if o.Catalog != nil {
		if err := o.Catalog.Validate(); err != nil {
			return fmt.Errorf("invalid catalog: %w", err)
		}
	}
	return nil
}

// TimeRange returns the backfill window; an explicit --start wins over --days.
func (o *Options) TimeRange(now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if o.Time.End != "" {
		t, err := time.Parse(time.RFC3339, o.Time.End)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
		end = t.UTC()
	}
	start := end.AddDate(0, 0, -o.Time.Days)
	if o.Time.Start != "" {
		t, err := time.Parse(time.RFC3339, o.Time.Start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
		}
		start = t.UTC()
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", ft(start), ft(end))
	}
	return start, end, nil
}

// parses the host information and returns a cleaned-up version to make
// it easier to make sure that things are properly specified
func parseHost(host string, insecure bool) (*url.URL, error) {
	switch host {
	case "honeycomb":
		host = "https://api.honeycomb.io:443"
	case "dogfood":
		host = "https://api-dogfood.honeycomb.io:443"
	case "local":
		host = "http://localhost:8889"
	default:
	}

	// if the scheme is not specified, fall back to the value of the insecure flag
	defaultScheme := "https"
	if insecure {
		defaultScheme = "http"
	}
	u, err := urlx.ParseWithDefaultScheme(host, defaultScheme)
	if err != nil {
		return nil, fmt.Errorf("unable to parse host %s: %w", host, err)
	}
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		u.Host = fmt.Sprintf("%s:%s", u.Host, port)
	}
	return u, nil
}

func ReadConfig(opts *Options, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	err = dec.Decode(opts)
	if err != nil {
		return err
	}
	log.Printf("read config from %s\n", filename)
	return nil
}

func WriteConfig(opts *Options, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	err = enc.Encode(opts)
	if err != nil {
		return err
	}
	log.Printf("wrote config to %s\n", filename)
	return nil
}

// loadEnvFile picks up a .env file in the working directory, if there is one.
// Variables already in the environment win.
func loadEnvFile() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("ignoring .env: %v\n", err)
	}
}

func newSink(log Logger, opts *Options) (Sink, error) {
	switch opts.Output.Sender {
	case "dummy":
		return NewSinkDummy(log, opts), nil
	case "print":
		return NewSinkPrint(log, opts), nil
	case "libhoney":
		return NewSinkLibhoney(log, opts)
	default:
		return NewSinkHoneycomb(log, opts)
	}
}

func main() {
	loadEnvFile()
	cmdopts := newOptions()

	parser := flags.NewParser(cmdopts, flags.Default)
	parser.Usage = `[OPTIONS]

	metricgen generates realistic web application metrics and sends them to
	Honeycomb as events. The simulated application is a handful of services
	(web-frontend, api-gateway, user-service, order-service, payment-service)
	serving traffic from four Americas regions. For every simulated minute it
	produces HTTP request durations, request and error counts, database query
	durations, memory usage per service and active users per region.

	Volume follows an Americas traffic pattern: quieter weekends, three busy
	peaks during business hours, and a low, noisy overnight trickle.

	By default it backfills --days of history ending now, exporting in batches
	of --batchsize events. With --realtime=N it instead generates data for the
	current time once every --interval for N hours.

	The API key is read from --apikey or HONEYCOMB_API_KEY (a .env file in the
	working directory is loaded first, if present).

	Options can be set in a config file, or on the command line; to specify them in the
	config file, specify it on the command line with "--config=FILENAME". The config file
	format is YAML, and may also replace the simulated application under "catalog".

	Note: If a config file is used, it MUST be used for all options, except for the ones
	marked in the help text with (*) -- these fields CANNOT be set in the config file.
	`

	// read the command line and envvars into cmdargs
	_, err := parser.Parse()
	if err != nil {
		switch flagsErr := err.(type) {
		case *flags.Error:
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		log.Fatalf("error reading command line: %v", err)
	}

	opts := newOptions()
	if cmdopts.Global.Config != "" {
		if err := ReadConfig(opts, cmdopts.Global.Config); err != nil {
			log.Fatalf("err %v -- unable to read config file %s", err, cmdopts.Global.Config)
		}
		opts.CopyStarredFieldsFrom(cmdopts)
	} else {
		opts = cmdopts // we don't have to read from a file
	}

	if opts.Global.WriteCfg != "" {
		if opts.Catalog == nil {
			opts.Catalog = DefaultCatalog()
		}
		err := WriteConfig(opts, opts.Global.WriteCfg)
		if err != nil {
			log.Fatalf("unable to write config: %s\n", err)
		}
		os.Exit(0)
	}

	if err := opts.Validate(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}

	if opts.Global.Seed == "" {
		opts.Global.Seed = opts.Telemetry.Dataset
	}

	log := NewLogger(opts.DebugLevel())

	if opts.apihost, err = parseHost(opts.Telemetry.Host, opts.Telemetry.Insecure); err != nil {
		log.Fatal("%s\n", err)
	}
	opts.selftracehost = opts.apihost
	if opts.SelfTrace.Host != "" {
		if opts.selftracehost, err = parseHost(opts.SelfTrace.Host, opts.Telemetry.Insecure); err != nil {
			log.Fatal("%s\n", err)
		}
	}

	log.Info("host: %s, dataset: %s, apikey: ...%4.4s\n", opts.apihost.String(), opts.Telemetry.Dataset, opts.Telemetry.APIKey)

	stats := NewStats()
	if opts.Global.DebugPort > 0 {
		http.Handle("/metrics", stats.Handler())
		go func() {
			http.ListenAndServe(fmt.Sprintf("localhost:%d", opts.Global.DebugPort), nil)
		}()
	}

	shutdownTracing := setupSelfTracing(log, opts)
	defer shutdownTracing()

	sink, err := newSink(log, opts)
	if err != nil {
		log.Fatal("unable to create sender: %s\n", err)
	}
	defer sink.Close()

	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	rng := NewRng(opts.Global.Seed)
	synth, err := NewSynthesizer(catalog, NewTrafficModel(rng), rng)
	if err != nil {
		log.Fatal("invalid catalog: %s\n", err)
	}

	buf := NewBuffer(sink, log, BufferOptions{
		BatchSize:  opts.Output.BatchSize,
		BatchDelay: opts.Output.BatchDelay,
		Stats:      stats,
	})
	driver := NewDriver(synth, buf, log, DriverOptions{
		Step:       opts.Time.Step,
		FlushEvery: opts.Time.FlushEvery,
		StepDelay:  opts.Time.StepDelay,
		Interval:   opts.Time.Interval,
		Stats:      stats,
	})

	// catch ctrl-c and stop at the next step; what's already generated still gets exported
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Time.Realtime > 0 {
		driver.Realtime(ctx, time.Duration(opts.Time.Realtime)*time.Hour)
		return
	}

	start, end, err := opts.TimeRange(time.Now())
	if err != nil {
		log.Fatal("%s\n", err)
	}
	log.Info("starting historical metrics generation from %s to %s\n", ft(start), ft(end))
	driver.Backfill(ctx, start, end)
}
