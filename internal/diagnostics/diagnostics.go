// Package diagnostics probes an OpenList server and explains what is wrong
// with the path to it.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/olx/internal/connectivity"
	"github.com/desertthunder/olx/internal/pipeline"
	"github.com/desertthunder/olx/internal/urls"
)

// DefaultTimeout bounds a single [Tester.Test].
const DefaultTimeout = 10 * time.Second

// Outcome classifies a server test.
type Outcome int

const (
	Success Outcome = iota
	AuthRequired
	ServerNotFound
	ServerError
	Timeout
	ConnectionFailed
	HostNotFound
	Unexpected
	NetworkError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case AuthRequired:
		return "auth_required"
	case ServerNotFound:
		return "server_not_found"
	case ServerError:
		return "server_error"
	case Timeout:
		return "timeout"
	case ConnectionFailed:
		return "connection_failed"
	case HostNotFound:
		return "host_not_found"
	case Unexpected:
		return "unexpected"
	default:
		return "network_error"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Result is the outcome of one server test.
type Result struct {
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Message    string        `json:"message,omitempty"`
	Latency    time.Duration `json:"latency"`
}

// Reachable reports whether the server answered like an OpenList server.
func (r Result) Reachable() bool { return r.Outcome == Success || r.Outcome == AuthRequired }

func (r Result) String() string {
	switch r.Outcome {
	case Unexpected:
		return fmt.Sprintf("unexpected status %d", r.StatusCode)
	case NetworkError:
		return "network error: " + r.Message
	default:
		return r.Outcome.String()
	}
}

// Report combines the local network state with a server test.
type Report struct {
	Network      connectivity.NetworkInfo `json:"network"`
	ServerURL    string                   `json:"server_url"`
	FormattedURL string                   `json:"formatted_url"`
	Result       Result                   `json:"result"`
}

// Tester runs server tests through a pipeline client without a connectivity gate,
// so it can probe even when the monitor reports the network as down.
type Tester struct {
	client     *http.Client
	normalizer *urls.Normalizer
	timeout    time.Duration
	logger     *log.Logger
}

// NewTester builds a tester. Retries are disabled so a test measures one round trip.
func NewTester(opts pipeline.Options, n *urls.Normalizer) *Tester {
	opts.Gate = nil
	opts.Tokens = nil
	opts.MaxRetries = 1
	if n == nil {
		n = urls.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Tester{
		client:     pipeline.NewClient(opts),
		normalizer: n,
		timeout:    DefaultTimeout,
		logger:     logger,
	}
}

// WithTimeout returns a copy of t that gives up after d.
func (t *Tester) WithTimeout(d time.Duration) *Tester {
	c := *t
	c.timeout = d
	return &c
}

// Test performs GET {serverURL}/api/auth/me and classifies the outcome.
func (t *Tester) Test(ctx context.Context, serverURL string) Result {
	base, err := t.normalizer.Normalize(serverURL)
	if err != nil {
		return Result{Outcome: HostNotFound, Message: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/auth/me", nil)
	if err != nil {
		return Result{Outcome: NetworkError, Message: err.Error()}
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		t.logger.Debug("server test failed", "url", base, "err", err)
		return classify(err, latency)
	}
	resp.Body.Close()

	res := Result{StatusCode: resp.StatusCode, Latency: latency}
	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		res.Outcome = Success
	case code == http.StatusUnauthorized:
		res.Outcome = AuthRequired
	case code == http.StatusNotFound:
		res.Outcome = ServerNotFound
	case code >= 500 && code <= 599:
		res.Outcome = ServerError
	default:
		res.Outcome = Unexpected
	}
	return res
}

func classify(err error, latency time.Duration) Result {
	res := Result{Outcome: NetworkError, Message: err.Error(), Latency: latency}

	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		pe = pipeline.Classify("", err)
	}
	switch pe.Kind {
	case pipeline.KindTimeout:
		res.Outcome = Timeout
	case pipeline.KindConnectionRefused:
		res.Outcome = ConnectionFailed
	case pipeline.KindHostUnresolved:
		res.Outcome = HostNotFound
	}
	return res
}

// Diagnose tests serverURL and attaches the current network state.
func (t *Tester) Diagnose(ctx context.Context, info connectivity.NetworkInfo, serverURL string) Report {
	formatted, _ := t.normalizer.Normalize(serverURL)
	return Report{
		Network:      info,
		ServerURL:    serverURL,
		FormattedURL: formatted,
		Result:       t.Test(ctx, serverURL),
	}
}

// Suggestions lists what the user can do about r: at most one network hint
// (the most severe) followed by one hint for the server test.
func Suggestions(r Report) []string {
	var out []string

	switch n := r.Network; {
	case n.Type == connectivity.None:
		out = append(out, "check your network connection")
	case !n.HasInternet:
		out = append(out, "connected to a network but the internet is not reachable")
	case !n.Validated:
		out = append(out, "the network needs sign-in, check for a captive portal")
	case n.Quality == connectivity.Poor:
		out = append(out, "network quality is poor, consider switching to Wi-Fi")
	case n.Metered:
		out = append(out, "on a metered network, transfers may incur charges")
	}

	switch r.Result.Outcome {
	case Timeout:
		out = append(out, "the server did not respond in time, check the network or retry later")
	case ConnectionFailed:
		out = append(out, "cannot connect to the server, confirm the server address")
	case HostNotFound:
		out = append(out, "cannot resolve the server address, check the URL")
	case AuthRequired:
		out = append(out, "the server is running and requires login")
	case ServerNotFound:
		out = append(out, "server not found, make sure OpenList is running")
	case ServerError:
		out = append(out, "internal server error, contact the server administrator")
	}

	return out
}
