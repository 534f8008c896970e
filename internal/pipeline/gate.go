package pipeline

import (
	"net/http"
)

// Gate reports whether outbound requests may proceed.
// [*connectivity.Monitor] satisfies it.
type Gate interface {
	IsConnected() bool
	IsAvailableForRequests() bool
	Recommendation() string
}

// Check evaluates g the way the pipeline does before every call.
// It returns nil when requests may proceed.
func Check(g Gate, host string) *Error {
	if g == nil {
		return nil
	}
	if !g.IsConnected() {
		return &Error{Kind: KindNotConnected, Host: host, Message: "network not connected, check your network settings"}
	}
	if !g.IsAvailableForRequests() {
		return &Error{Kind: KindPoorQuality, Host: host, Message: g.Recommendation()}
	}
	return nil
}

// gateTransport is the outermost stage. It evaluates the gate once per call
// and converts anything the inner stages return into an [*Error].
type gateTransport struct {
	next http.RoundTripper
	gate Gate
}

func (t *gateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Hostname()
	if err := Check(t.gate, host); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, Classify(host, err)
	}
	return resp, nil
}
