package server

import (
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/amap"
	"github.com/woozymasta/geotrack/internal/config"
	"github.com/woozymasta/geotrack/internal/fetch"
	"github.com/woozymasta/geotrack/internal/processor"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config  *config.Config
	Fetcher processor.Fetcher
	// AMap is nil when no service key is configured.
	AMap *amap.Client
}

// NewServerContext builds the fetcher and the optional AMap client from cfg.
func NewServerContext(cfg *config.Config) *ServerContext {
	f := fetch.New(fetch.Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
		RPS:       cfg.Fetch.RPS,
		Burst:     cfg.Fetch.Burst,
	})

	s := &ServerContext{Config: cfg, Fetcher: f}

	if cfg.AMap.Key != "" {
		s.AMap = amap.New(f.Client, cfg.AMap.URL, cfg.AMap.Key)
		log.Debug().Msg("AMap conversion provider enabled")
	} else {
		log.Trace().Msg("AMap conversion provider skipped: no key in config")
	}

	log.Info().
		Str("datum", cfg.Datum).
		Str("simplify", cfg.Simplify.Method).
		Float64("rps", cfg.Fetch.RPS).
		Dur("timeout", cfg.Fetch.Timeout).
		Msg("Server context initialized successfully")

	return s
}
