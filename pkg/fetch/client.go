// Package fetch provides the outbound HTTP client used for page and media
// fetches: SSRF protection at dial time, global request pacing, a bounded
// number of in-flight page fetches and retries with exponential backoff on
// throttling responses.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrForbiddenIP is returned when a resolved address is in a private or
	// otherwise blocked range.
	ErrForbiddenIP = errors.New("connection to private/internal IP addresses is forbidden")
	// ErrRetriesExhausted is returned when all fetch attempts failed.
	ErrRetriesExhausted = errors.New("all fetch attempts failed")
)

// forbiddenIPRanges lists IPv4 ranges blocked to prevent SSRF. Scraped pages
// supply the URLs we fetch, so the target host is attacker controlled.
var forbiddenIPRanges = []net.IPNet{
	{IP: net.IPv4(10, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv4(172, 16, 0, 0), Mask: net.CIDRMask(12, 32)},
	{IP: net.IPv4(192, 168, 0, 0), Mask: net.CIDRMask(16, 32)},
	{IP: net.IPv4(127, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv4(169, 254, 0, 0), Mask: net.CIDRMask(16, 32)},
	{IP: net.IPv4(224, 0, 0, 0), Mask: net.CIDRMask(4, 32)},
	{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)},
	{IP: net.IPv4(0, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
}

var forbiddenIPv6Ranges = []net.IPNet{
	{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
	{IP: net.ParseIP("::"), Mask: net.CIDRMask(128, 128)},
	{IP: net.ParseIP("fc00::"), Mask: net.CIDRMask(7, 128)},
	{IP: net.ParseIP("fe80::"), Mask: net.CIDRMask(10, 128)},
	{IP: net.ParseIP("ff00::"), Mask: net.CIDRMask(8, 128)},
}

// isForbiddenIP checks if an IP address is in a forbidden range.
func isForbiddenIP(ip net.IP) bool {
	if ip == nil {
		return true
	}

	if ipv4 := ip.To4(); ipv4 != nil {
		for _, network := range forbiddenIPRanges {
			if network.Contains(ipv4) {
				return true
			}
		}
		return false
	}

	for _, network := range forbiddenIPv6Ranges {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsForbiddenIP is exported for testing purposes.
func IsForbiddenIP(ip net.IP) bool {
	return isForbiddenIP(ip)
}

// safeDialer validates the resolved IP at connection time, which also covers
// DNS rebinding.
func safeDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control: func(network, address string, c syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fmt.Errorf("failed to parse address: %w", err)
			}

			ip := net.ParseIP(host)
			if ip == nil {
				return fmt.Errorf("invalid IP address: %s", host)
			}

			if isForbiddenIP(ip) {
				return ErrForbiddenIP
			}
			return nil
		},
	}
}

// defaultUserAgents rotate per request so page fetches don't present a single
// fingerprint.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15",
	"Mozilla/5.0 (Linux; Android 13) AppleWebKit/537.36",
}

// Config holds fetch client configuration.
type Config struct {
	Timeout           time.Duration // per-request timeout
	RetryAttempts     int           // attempts per page fetch
	MaxInFlight       int           // bound on concurrent page fetches
	RequestsPerSecond float64       // global outbound pacing
	UserAgents        []string
	AllowPrivate      bool // disable the SSRF dial guard (tests only)
}

// DefaultConfig returns the default fetch configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:           30 * time.Second,
		RetryAttempts:     3,
		MaxInFlight:       10,
		RequestsPerSecond: 5,
	}
}

// Client is a rate-limited, retrying HTTP client.
type Client struct {
	hc      *http.Client
	limiter *rate.Limiter
	sem     chan struct{}
	retries int

	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

// New creates a Client from the given configuration.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.MaxInFlight < 1 {
		cfg.MaxInFlight = 1
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	uas := cfg.UserAgents
	if len(uas) == 0 {
		uas = defaultUserAgents
	}

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	if !cfg.AllowPrivate {
		transport.DialContext = safeDialer().DialContext
	}

	return &Client{
		hc: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.MaxInFlight),
		sem:     make(chan struct{}, cfg.MaxInFlight),
		retries: cfg.RetryAttempts,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		uas:     uas,
	}
}

func (c *Client) userAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uas[c.rnd.Intn(len(c.uas))]
}

// FetchPage retrieves the body of url, holding one of the bounded in-flight
// slots for the duration of the read. Throttling responses (429) back off
// exponentially between attempts.
func (c *Client) FetchPage(ctx context.Context, url string) ([]byte, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, status, err := c.fetchOnce(ctx, url)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !sleepCtx(ctx, time.Duration(attempt+1)*500*time.Millisecond) {
				return nil, ctx.Err()
			}
			continue
		}

		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("throttled with status %d", status)
			if !sleepCtx(ctx, time.Duration(1<<attempt)*time.Second) {
				return nil, ctx.Err()
			}
		default:
			lastErr = fmt.Errorf("unexpected status %d", status)
			if !sleepCtx(ctx, time.Second) {
				return nil, ctx.Err()
			}
		}
	}

	if lastErr == nil {
		lastErr = ErrRetriesExhausted
	}
	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// Get issues a single paced GET and returns the open response for streaming.
// The caller owns resp.Body. Used for media transfers, which carry their own
// concurrency bound.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())

	return c.hc.Do(req)
}

// sleepCtx sleeps for d unless ctx is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
