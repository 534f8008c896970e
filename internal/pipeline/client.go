// package pipeline builds the HTTP client every OpenList call goes through.
//
// The client is a fixed chain of [http.RoundTripper] stages, outermost first:
//
//  1. connectivity gate (once per call) and error classification
//  2. bounded retry with linear backoff, optionally rate limited
//  3. JSON headers and bearer token
//  4. cache hint on top of a pooled [http.Transport] with per-connection deadlines
//
// Transport failures surface as [*Error]; non-2xx responses are returned to
// the caller unchanged once retries are exhausted.
package pipeline

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/olx/internal/shared"
)

// Options configures [NewClient]. Zero fields take the defaults from [DefaultOptions].
type Options struct {
	MaxRetries     int
	BaseDelay      time.Duration
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CallTimeout    time.Duration
	KeepAlive      time.Duration // idle pooled connection lifetime
	PingInterval   time.Duration // TCP keep-alive probe period
	MaxIdleConns   int
	RateLimit      float64 // requests per second, 0 disables
	RateBurst      int
	UserAgent      string

	Gate   Gate
	Tokens oauth2.TokenSource
	Logger *log.Logger

	// Base replaces the pooled transport, mostly for tests.
	Base http.RoundTripper

	sleep sleepFunc
}

// DefaultOptions returns the stock pool and retry policy.
func DefaultOptions() Options {
	return Options{
		MaxRetries:     DefaultMaxRetries,
		BaseDelay:      DefaultBaseDelay,
		ConnectTimeout: 20 * time.Second,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		CallTimeout:    90 * time.Second,
		KeepAlive:      5 * time.Minute,
		PingInterval:   30 * time.Second,
		MaxIdleConns:   5,
		RateBurst:      1,
		UserAgent:      "olx",
	}
}

// OptionsFromConfig maps the [network] config section onto Options.
func OptionsFromConfig(cfg shared.NetworkConfig) Options {
	return Options{
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.RetryBaseDelay.Duration,
		ConnectTimeout: cfg.ConnectTimeout.Duration,
		ReadTimeout:    cfg.ReadTimeout.Duration,
		WriteTimeout:   cfg.WriteTimeout.Duration,
		CallTimeout:    cfg.CallTimeout.Duration,
		KeepAlive:      cfg.KeepAlive.Duration,
		PingInterval:   cfg.PingInterval.Duration,
		MaxIdleConns:   cfg.MaxIdleConns,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		UserAgent:      cfg.UserAgent,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = d.KeepAlive
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = d.MaxIdleConns
	}
	if o.RateBurst <= 0 {
		o.RateBurst = d.RateBurst
	}
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o
}

// NewClient returns an [http.Client] wrapping [NewTransport] with the overall call timeout.
func NewClient(opts Options) *http.Client {
	opts = opts.withDefaults()
	return &http.Client{
		Transport: NewTransport(opts),
		Timeout:   opts.CallTimeout,
	}
}

// NewTransport assembles the stage chain.
func NewTransport(opts Options) http.RoundTripper {
	opts = opts.withDefaults()

	base := opts.Base
	if base == nil {
		base = NewPooledTransport(opts)
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}

	var rt http.RoundTripper = &cacheTransport{next: base}
	rt = &authTransport{next: rt, source: opts.Tokens, userAgent: opts.UserAgent, logger: opts.Logger}
	rt = &retryTransport{
		next:      rt,
		attempts:  opts.MaxRetries,
		baseDelay: opts.BaseDelay,
		limiter:   limiter,
		sleep:     opts.sleep,
		logger:    opts.Logger,
	}
	return &gateTransport{next: rt, gate: opts.Gate}
}

// NewPooledTransport returns the connection pool: a bounded idle set, a dial
// timeout, TCP keep-alive probes and read/write deadlines on every connection.
func NewPooledTransport(opts Options) *http.Transport {
	opts = opts.withDefaults()
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: opts.PingInterval,
	}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, read: opts.ReadTimeout, write: opts.WriteTimeout}, nil
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dial,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          opts.MaxIdleConns,
		MaxIdleConnsPerHost:   opts.MaxIdleConns,
		IdleConnTimeout:       opts.KeepAlive,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
		ExpectContinueTimeout: time.Second,
	}
}

// deadlineConn pushes the read or write deadline forward before each I/O call.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}
