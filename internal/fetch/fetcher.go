// Package fetch performs paced HTTP GETs through a Colly collector.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

// Config controls collector behavior.
type Config struct {
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	Headers           map[string]string
}

// Response is a completed fetch.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

// IsNotFound reports whether err is a 404 or 410 from the remote side.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone
	}
	return false
}

// ObserveFunc is told about every finished request.
type ObserveFunc func(resp Response, err error)

// Fetcher issues GET requests with per-host pacing.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *HostLimiter
	observe       ObserveFunc
}

// New builds a Fetcher.
func New(cfg Config, observe ObserveFunc) *Fetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		limiter:       NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst),
		observe:       observe,
	}
}

// Get fetches rawURL, waiting for the host's rate budget first. A context
// cancellation abandons the in-flight request.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (Response, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return Response{}, err
	}

	var (
		result   Response
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(start, &result, &fetchErr)

	err := f.runCollector(ctx, collector, rawURL, &fetchErr)
	if f.observe != nil && ctx.Err() == nil {
		f.observe(result, err)
	}
	if err != nil {
		return Response{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(start time.Time, result *Response, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		for k, v := range f.cfg.Headers {
			r.Headers.Set(k, v)
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		*result = Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 300 {
			*fetchErr = &StatusError{URL: r.Request.URL.String(), StatusCode: r.StatusCode}
			return
		}
		*fetchErr = err
	})
	return collector
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		logrus.Debugf("Abandoning in-flight request to %s", url)
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("fetch failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		return nil
	}
}
