// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/activity"
	"github.com/woozymasta/geotrack/internal/amap"
	"github.com/woozymasta/geotrack/internal/config"
	"github.com/woozymasta/geotrack/internal/fetch"
	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/metrics"
	"github.com/woozymasta/geotrack/internal/processor"
	"github.com/woozymasta/geotrack/internal/track"
)

// ProviderAMap selects the AMap conversion service for the provider parameter.
const ProviderAMap = "amap"

// Routes registers every endpoint on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/activity", s.HandleActivity)
	mux.HandleFunc("/api/ypx", s.HandleYPX)
	mux.HandleFunc("/api/convert", s.HandleConvert)
	mux.HandleFunc("/healthz", s.HandleHealth)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// HandleHealth reports liveness.
func (s *ServerContext) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// HandleActivity serves a TCX or GPX activity as GeoJSON.
func (s *ServerContext) HandleActivity(w http.ResponseWriter, r *http.Request) {
	req, err := s.trackRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if status, err := s.applyProvider(r, &req); err != nil {
		writeError(w, status, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		req.Kind = processor.Kind(activity.DetectFormat(req.Source))
	} else {
		f, err := activity.ParseFormat(format)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.Kind = processor.Kind(f)
	}

	s.serveTrack(w, r, req)
}

// HandleYPX serves a ypx compact track as GeoJSON.
func (s *ServerContext) HandleYPX(w http.ResponseWriter, r *http.Request) {
	req, err := s.trackRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Kind = processor.KindYPX

	if status, err := s.applyProvider(r, &req); err != nil {
		writeError(w, status, err)
		return
	}

	s.serveTrack(w, r, req)
}

// trackRequest reads the shared query parameters of the track endpoints
// on top of the configured defaults.
func (s *ServerContext) trackRequest(r *http.Request) (processor.Request, error) {
	q := r.URL.Query()

	source := q.Get("url")
	if source == "" {
		return processor.Request{}, errors.New("missing url parameter")
	}
	// local paths are only for the CLI
	if !fetch.IsRemote(source) {
		return processor.Request{}, fmt.Errorf("url must be http or https: %q", source)
	}

	req := processor.NewRequest(source, s.Config)

	if v := q.Get("datum"); v != "" {
		d, err := geo.ParseDatum(strings.ToLower(v))
		if err != nil {
			return req, err
		}
		req.Datum = d
	}

	if v := q.Get("simplify"); v != "" {
		if err := config.ValidateMethod(v); err != nil {
			return req, err
		}
		req.Method = v
	}

	var err error
	if req.MinDistance, err = floatParam(q.Get("min"), req.MinDistance); err != nil {
		return req, fmt.Errorf("min: %w", err)
	}
	if req.Epsilon, err = floatParam(q.Get("epsilon"), req.Epsilon); err != nil {
		return req, fmt.Errorf("epsilon: %w", err)
	}
	if req.MinDistance < 0 || req.Epsilon < 0 {
		return req, errors.New("simplify thresholds must not be negative")
	}

	if v := q.Get("prefilter"); v != "" {
		if req.Prefilter, err = strconv.ParseBool(v); err != nil {
			return req, fmt.Errorf("prefilter: %w", err)
		}
	}

	return req, nil
}

// applyProvider routes the WGS84 to GCJ-02 leg of a track through the
// requested conversion service.
func (s *ServerContext) applyProvider(r *http.Request, req *processor.Request) (int, error) {
	switch provider := r.URL.Query().Get("provider"); provider {
	case "":
		return 0, nil
	case ProviderAMap:
		if s.AMap == nil {
			return http.StatusServiceUnavailable, errors.New("amap provider is not configured")
		}
		switch req.Datum {
		case geo.WGS84:
			return http.StatusBadRequest, errors.New("amap provider converts wgs84 to gcj02 only")
		case "":
			req.Datum = geo.GCJ02
		}
		req.Converter = s.AMap
		return 0, nil
	default:
		return http.StatusBadRequest, fmt.Errorf("unknown provider %q", provider)
	}
}

func (s *ServerContext) serveTrack(w http.ResponseWriter, r *http.Request, req processor.Request) {
	res, err := processor.Process(r.Context(), s.Fetcher, req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := processor.Write(w, res, processor.FormatGeoJSON, s.Config.GeoJSON.Precision); err != nil {
		// headers are gone, nothing to report to the client
		log.Error().Err(err).Str("source", req.Source).Msg("Failed to write response")
	}
}

type convertResponse struct {
	Datum    geo.Datum `json:"datum"`
	Provider string    `json:"provider,omitempty"`
	Lng      float64   `json:"lng"`
	Lat      float64   `json:"lat"`
}

// HandleConvert converts a single coordinate between datums.
func (s *ServerContext) HandleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lng, err := parseFinite(q.Get("lng"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("lng: %w", err))
		return
	}
	lat, err := parseFinite(q.Get("lat"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("lat: %w", err))
		return
	}

	from, err := geo.ParseDatum(strings.ToLower(q.Get("from")))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to := geo.GCJ02
	if v := q.Get("to"); v != "" {
		if to, err = geo.ParseDatum(strings.ToLower(v)); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	p := geo.Point{Lng: lng, Lat: lat}
	resp := convertResponse{Datum: to}

	switch provider := q.Get("provider"); provider {
	case "":
		out, err := geo.Convert(p, from, to)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp.Lng, resp.Lat = out.Lng, out.Lat

	case ProviderAMap:
		if s.AMap == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("amap provider is not configured"))
			return
		}
		if from != geo.WGS84 || to != geo.GCJ02 {
			writeError(w, http.StatusBadRequest, errors.New("amap provider converts wgs84 to gcj02 only"))
			return
		}
		out, err := s.AMap.Convert(r.Context(), []geo.Point{p})
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		resp.Lng, resp.Lat = out[0].Lng, out[0].Lat
		resp.Provider = ProviderAMap

	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown provider %q", provider))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(resp)
}

// statusFor maps pipeline errors to response codes.
func statusFor(err error) int {
	var (
		fetchErr *track.FetchError
		parseErr *track.ParseError
		convErr  *amap.ConvertError
	)
	switch {
	case errors.As(err, &fetchErr), errors.As(err, &convErr),
		errors.Is(err, amap.ErrNoData), errors.Is(err, processor.ErrProvider):
		return http.StatusBadGateway
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Warn().Err(err).Int("status", status).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func floatParam(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	return parseFinite(v)
}

var errNotFinite = errors.New("value must be a finite number")

// parseFinite rejects NaN and infinities, which JSON cannot carry.
func parseFinite(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}
