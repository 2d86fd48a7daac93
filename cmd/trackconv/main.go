package main

import (
	"context"
	"os"

	"github.com/woozymasta/geotrack/internal/amap"
	"github.com/woozymasta/geotrack/internal/config"
	"github.com/woozymasta/geotrack/internal/fetch"
	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/logger"
	"github.com/woozymasta/geotrack/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	Input       []string `short:"i" long:"in"          description:"Track source, URL or file path (repeatable)" required:"true"`
	Kind        string   `short:"k" long:"kind"        description:"Source kind, detected from the extension if empty" choice:"tcx" choice:"gpx" choice:"ypx"`
	Format      string   `short:"f" long:"format"      description:"Output format" choice:"geojson" choice:"json" choice:"yaml" default:"geojson"`
	OutDir      string   `short:"o" long:"out-dir"     description:"Output directory. Writes to stdout if empty"`
	Datum       string   `short:"d" long:"datum"       description:"Output datum, keeps the source datum if empty" choice:"wgs84" choice:"gcj02" choice:"bd09"`
	Simplify    string   `short:"s" long:"simplify"    description:"Simplification method" choice:"none" choice:"distance" choice:"douglas"`
	MinDistance float64  `short:"m" long:"min"         description:"Minimum distance between kept points, meters"`
	Epsilon     float64  `short:"e" long:"epsilon"     description:"Douglas-Peucker tolerance, projected meters"`
	Prefilter   bool     `long:"prefilter"             description:"Thin dense tracks radially before Douglas-Peucker"`
	Provider    string   `long:"provider"              description:"Remote WGS84 to GCJ-02 conversion service" choice:"amap"`
	AMapKey     string   `long:"amap-key"              env:"AMAP_KEY" description:"AMap web service key, required by --provider amap"`
	Precision   int      `long:"precision"             description:"GeoJSON significant digits, 0 keeps all" default:"-1"`
	Concurrency int      `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrency" default:"4"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyOptions(cfg, &opts)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid options")
	}

	if len(opts.Input) > 1 && opts.OutDir == "" {
		log.Fatal().Msg("--out-dir is required for more than one input")
	}

	kind, err := processor.ParseKind(opts.Kind)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid options")
	}

	fetcher := fetch.New(fetch.Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
		RPS:       cfg.Fetch.RPS,
		Burst:     cfg.Fetch.Burst,
	})

	var conv processor.Converter
	if opts.Provider == "amap" {
		if cfg.AMap.Key == "" {
			log.Fatal().Msg("--amap-key is required for --provider amap")
		}
		if cfg.Datum == string(geo.WGS84) {
			log.Fatal().Msg("--provider amap converts wgs84 to gcj02 only")
		}
		if cfg.Datum == "" {
			cfg.Datum = string(geo.GCJ02)
		}
		conv = amap.New(fetcher.Client, cfg.AMap.URL, cfg.AMap.Key)
	}

	reqs := make([]processor.Request, len(opts.Input))
	for i, src := range opts.Input {
		reqs[i] = processor.NewRequest(src, cfg)
		reqs[i].Kind = kind
		reqs[i].Converter = conv
	}
	names := processor.OutputNames(opts.Input, opts.Format)

	log.Info().
		Int("inputs", len(reqs)).
		Int("concurrency", opts.Concurrency).
		Str("format", opts.Format).
		Msg("Starting conversion")

	var onDone func(processor.Outcome)
	bar := newBar(len(reqs))
	if len(reqs) > 1 {
		onDone = func(processor.Outcome) { _ = bar.Add(1) }
	}

	outcomes := processor.ProcessBatch(context.Background(), fetcher, reqs, opts.Concurrency, onDone)
	if len(reqs) > 1 {
		_ = bar.Finish()
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}

		if opts.OutDir == "" {
			if err := processor.Write(os.Stdout, o.Result, opts.Format, cfg.GeoJSON.Precision); err != nil {
				log.Error().Err(err).Str("source", o.Request.Source).Msg("Failed to write output")
				failed++
			}
			continue
		}

		path, err := processor.SaveAs(opts.OutDir, names[o.Index], o.Result, opts.Format, cfg.GeoJSON.Precision)
		if err != nil {
			log.Error().Err(err).Str("source", o.Request.Source).Msg("Failed to save output")
			failed++
			continue
		}
		log.Debug().Str("source", o.Request.Source).Str("path", path).Msg("Track saved")
	}

	log.Info().
		Int("converted", len(outcomes)-failed).
		Int("failed", failed).
		Msg("Conversion finished")

	if failed > 0 {
		os.Exit(1)
	}
}

// applyOptions overrides configuration values set on the command line.
func applyOptions(cfg *config.Config, opts *Options) {
	if opts.Datum != "" {
		cfg.Datum = opts.Datum
	}
	if opts.Simplify != "" {
		cfg.Simplify.Method = opts.Simplify
	}
	if opts.MinDistance > 0 {
		cfg.Simplify.MinDistance = opts.MinDistance
	}
	if opts.Epsilon > 0 {
		cfg.Simplify.Epsilon = opts.Epsilon
	}
	if opts.Prefilter {
		cfg.Simplify.Prefilter = true
	}
	if opts.AMapKey != "" {
		cfg.AMap.Key = opts.AMapKey
	}
	if opts.Precision >= 0 {
		cfg.GeoJSON.Precision = opts.Precision
	}
}
