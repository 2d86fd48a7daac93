// Package fetch retrieves source documents over HTTP or from local disk.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/metrics"
	"github.com/woozymasta/geotrack/internal/track"
	"golang.org/x/time/rate"
)

// Fetcher downloads source documents. The zero value is not usable, use New.
type Fetcher struct {
	Client    *http.Client
	Limiter   *rate.Limiter
	UserAgent string
}

// Options configures a Fetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// RPS limits outgoing requests per second, zero disables the limit.
	RPS   float64
	Burst int
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	f := &Fetcher{
		Client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
			Timeout: opts.Timeout,
		},
		UserAgent: opts.UserAgent,
	}

	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		f.Limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return f
}

// IsRemote reports whether source is fetched over HTTP.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Get returns the body of source. Remote sources must answer with a 2xx
// status; any other source is read as a local file path. Failures are
// returned as *track.FetchError.
func (f *Fetcher) Get(ctx context.Context, source string) ([]byte, error) {
	scheme := "file"
	if IsRemote(source) {
		scheme = "http"
	}

	start := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues(scheme).Observe(time.Since(start).Seconds())
	}()

	var (
		data []byte
		err  error
	)
	if scheme == "http" {
		data, err = f.getRemote(ctx, source)
	} else {
		data, err = os.ReadFile(source)
		if err != nil {
			err = &track.FetchError{Source: source, Err: err}
		}
	}

	if err != nil {
		metrics.FetchErrors.WithLabelValues(scheme).Inc()
		return nil, err
	}

	log.Debug().
		Str("source", source).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Source fetched")

	return data, nil
}

func (f *Fetcher) getRemote(ctx context.Context, url string) ([]byte, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, &track.FetchError{Source: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &track.FetchError{Source: url, Err: err}
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &track.FetchError{Source: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &track.FetchError{
			Source:     url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &track.FetchError{Source: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return body, nil
}
