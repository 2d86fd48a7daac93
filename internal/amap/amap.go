// Package amap converts GPS coordinates to GCJ-02 through the AMap web
// service. It is a fallback for the closed-form converter in package geo and
// is slow for large point counts.
package amap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/geo"
	"github.com/woozymasta/geotrack/internal/metrics"
)

// DefaultURL is the AMap coordinate conversion endpoint.
const DefaultURL = "https://restapi.amap.com/v3/assistant/coordinate/convert"

// MaxBatch is the number of points the service accepts per request.
const MaxBatch = 40

// Result statuses of a conversion request.
const (
	StatusComplete = "complete"
	StatusError    = "error"
	StatusNoData   = "no_data"
)

// ErrNoData is returned when the service answers without locations.
var ErrNoData = errors.New("amap: conversion returned no data")

// ConvertError is a failed conversion reported by the service.
type ConvertError struct {
	Status   string
	Info     string
	InfoCode string
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("amap: coordinate conversion failed, status=%s, info=%s, infocode=%s", e.Status, e.Info, e.InfoCode)
}

// Client talks to the AMap coordinate conversion API.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Key     string
}

// New creates a client; an empty baseURL selects DefaultURL.
func New(httpClient *http.Client, baseURL, key string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{HTTP: httpClient, BaseURL: baseURL, Key: key}
}

// Internal structure for the JSON response
type convertResponse struct {
	Status    string `json:"status"`
	Info      string `json:"info"`
	InfoCode  string `json:"infocode"`
	Locations string `json:"locations"`
}

// Convert converts WGS84 points to GCJ-02, in request batches of MaxBatch.
func (c *Client) Convert(ctx context.Context, points []geo.Point) ([]geo.Point, error) {
	out := make([]geo.Point, 0, len(points))

	for start := 0; start < len(points); start += MaxBatch {
		end := min(start+MaxBatch, len(points))

		batch, err := c.convertBatch(ctx, points[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}

	return out, nil
}

func (c *Client) convertBatch(ctx context.Context, points []geo.Point) ([]geo.Point, error) {
	locs := make([]string, len(points))
	for i, p := range points {
		locs[i] = strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}

	q := url.Values{}
	q.Set("key", c.Key)
	q.Set("locations", strings.Join(locs, "|"))
	q.Set("coordsys", "gps")
	q.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("amap request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.AmapRequests.WithLabelValues(StatusError).Inc()
		return nil, fmt.Errorf("amap request: status %d", resp.StatusCode)
	}

	var body convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.AmapRequests.WithLabelValues(StatusError).Inc()
		return nil, fmt.Errorf("amap response: %w", err)
	}

	status := body.status()
	metrics.AmapRequests.WithLabelValues(status).Inc()

	if status == StatusError || body.Info != "ok" {
		err := &ConvertError{Status: status, Info: body.Info, InfoCode: body.InfoCode}
		log.Error().Err(err).Int("points", len(points)).Msg("AMap conversion failed")
		return nil, err
	}
	if status == StatusNoData {
		return nil, ErrNoData
	}

	result, err := parseLocations(body.Locations)
	if err != nil {
		return nil, err
	}
	if len(result) != len(points) {
		return nil, fmt.Errorf("amap response: got %d locations for %d points", len(result), len(points))
	}

	return result, nil
}

// status maps the numeric service status to the conversion result status.
func (r convertResponse) status() string {
	switch {
	case r.Status != "1":
		return StatusError
	case strings.TrimSpace(r.Locations) == "":
		return StatusNoData
	}
	return StatusComplete
}

func parseLocations(s string) ([]geo.Point, error) {
	pairs := strings.Split(s, ";")
	out := make([]geo.Point, 0, len(pairs))

	for _, pair := range pairs {
		lngStr, latStr, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("amap response: malformed location %q", pair)
		}
		lng, err1 := strconv.ParseFloat(lngStr, 64)
		lat, err2 := strconv.ParseFloat(latStr, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("amap response: malformed location %q", pair)
		}
		out = append(out, geo.Point{Lng: lng, Lat: lat})
	}

	return out, nil
}
