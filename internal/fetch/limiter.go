package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// ExtractDomain extracts the lowercase hostname from a URL string
func ExtractDomain(urlStr string) (string, error) {
	// Handle protocol-relative URLs
	if strings.HasPrefix(urlStr, "//") {
		urlStr = "https:" + urlStr
	}

	// Relative URLs carry no host
	if !strings.Contains(urlStr, "://") {
		return "", nil
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// HostLimiter paces requests per host with a token bucket each
type HostLimiter struct {
	limit rate.Limit
	burst int
	mu    sync.RWMutex
	// Map: host -> bucket
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter allowing rps requests per second per host.
// A non-positive rps disables pacing.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (hl *HostLimiter) forHost(host string) *rate.Limiter {
	hl.mu.RLock()
	limiter, exists := hl.limiters[host]
	hl.mu.RUnlock()
	if exists {
		return limiter
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()

	// Another caller may have registered it meanwhile
	if limiter, exists = hl.limiters[host]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(hl.limit, hl.burst)
	hl.limiters[host] = limiter
	return limiter
}

// Wait blocks until the host of rawURL may be requested again
func (hl *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host, err := ExtractDomain(rawURL)
	if err != nil || host == "" {
		host = "unknown"
	}
	if err := hl.forHost(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Count returns the number of hosts seen so far
func (hl *HostLimiter) Count() int {
	hl.mu.RLock()
	defer hl.mu.RUnlock()

	return len(hl.limiters)
}
