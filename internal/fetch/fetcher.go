// Package fetch retrieves remote pages and images with guardrails: scheme
// and address validation against server-side request forgery, a response
// size cap, and a shared rate limit.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrSchemeNotAllowed = errors.New("fetch: scheme not allowed")
	ErrPrivateAddress   = errors.New("fetch: address resolves to a private or local network")
	ErrTooLarge         = errors.New("fetch: response exceeds size limit")
)

const (
	DefaultMaxBytes = 10 << 20
	DefaultTimeout  = 20 * time.Second
	defaultRate     = 5 // requests per second
)

// Fetcher is a rate-limited, SSRF-guarded HTTP client.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxBytes caps the accepted response size.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// WithRateLimit overrides the requests-per-second budget.
func WithRateLimit(rps float64, burst int) Option {
	return func(f *Fetcher) { f.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.Timeout = d }
}

// New creates a Fetcher. The guard runs at dial time, after name resolution,
// so DNS answers pointing at internal addresses are rejected too; redirects
// pass through the same dialer and are re-validated for free.
func New(opts ...Option) *Fetcher {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				if isDisallowedIP(ip.IP) {
					return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, host)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},
	}

	f := &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
		},
		limiter:  rate.NewLimiter(defaultRate, defaultRate),
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves a URL and returns its body.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := Validate(rawURL); err != nil {
		return nil, err
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "contentcheck/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, rawURL)
	}
	return body, nil
}

// Validate checks a URL's scheme and, when the host is a literal address,
// rejects private and local ranges up front.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrSchemeNotAllowed, u.Scheme)
	}
	if ip := net.ParseIP(u.Hostname()); ip != nil && isDisallowedIP(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, u.Hostname())
	}
	return nil
}

func isDisallowedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
