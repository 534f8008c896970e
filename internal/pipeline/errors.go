package pipeline

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/desertthunder/olx/internal/shared"
)

// Kind classifies a failed request.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotConnected
	KindPoorQuality
	KindTimeout
	KindConnectionRefused
	KindHostUnresolved
	KindTLS
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNotConnected:
		return "not_connected"
	case KindPoorQuality:
		return "poor_quality"
	case KindTimeout:
		return "timeout"
	case KindConnectionRefused:
		return "connection_refused"
	case KindHostUnresolved:
		return "host_unresolved"
	case KindTLS:
		return "tls"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotConnected:
		return shared.ErrNotConnected
	case KindPoorQuality:
		return shared.ErrPoorQuality
	case KindTimeout:
		return shared.ErrTimeout
	case KindConnectionRefused:
		return shared.ErrConnectionRefused
	case KindHostUnresolved:
		return shared.ErrHostUnresolved
	case KindTLS:
		return shared.ErrTLS
	case KindServer:
		return shared.ErrServer
	default:
		return shared.ErrNetwork
	}
}

// Error is the typed failure surfaced by the pipeline and by API clients built on it.
//
// It matches its kind's sentinel in package shared with [errors.Is]
// (e.g. [shared.ErrTimeout]) as well as the underlying cause.
type Error struct {
	Kind       Kind
	Host       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.sentinel().Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// IsNetwork reports whether the failure happened below HTTP (no response was received).
func (e *Error) IsNetwork() bool {
	return e.Kind != KindServer
}

// ServerError builds the error for a non-success HTTP status.
func ServerError(host string, code int) *Error {
	return &Error{Kind: KindServer, Host: host, StatusCode: code, Message: StatusText(code)}
}

// StatusText maps an HTTP status to a human-readable phrase.
func StatusText(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "bad request, check the parameters"
	case http.StatusUnauthorized:
		return "authentication expired, please log in again"
	case http.StatusForbidden:
		return "access denied, insufficient permissions"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusRequestEntityTooLarge:
		return "the request is too large"
	case http.StatusUnprocessableEntity:
		return "the request data is malformed"
	case http.StatusTooManyRequests:
		return "too many requests, please try again later"
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusBadGateway:
		return "bad gateway, the server may be under maintenance"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	case http.StatusGatewayTimeout:
		return "gateway timeout"
	default:
		return fmt.Sprintf("request failed (%d)", code)
	}
}

// HostShape groups destinations for message wording.
type HostShape int

const (
	Public HostShape = iota
	Loopback
	PrivateLAN
)

// ShapeOf classifies host as loopback, private LAN or public.
func ShapeOf(host string) HostShape {
	h := strings.ToLower(strings.Trim(host, "[]"))
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return Loopback
	}
	ip := net.ParseIP(h)
	switch {
	case ip == nil:
		return Public
	case ip.IsLoopback():
		return Loopback
	case ip.IsPrivate(), ip.IsLinkLocalUnicast():
		return PrivateLAN
	default:
		return Public
	}
}

// Classify converts a transport error for host into an [*Error].
// Errors that are already classified are returned unchanged.
func Classify(host string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	kind := kindOf(err)
	return &Error{Kind: kind, Host: host, Message: message(kind, host, err), Err: err}
}

func kindOf(err error) Kind {
	var (
		dnsErr      *net.DNSError
		netErr      net.Error
		certErr     *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidCert x509.CertificateInvalidError
	)

	switch {
	case errors.As(err, &dnsErr):
		return KindHostUnresolved
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.As(err, &certErr), errors.As(err, &recordErr), errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr), errors.As(err, &invalidCert):
		return KindTLS
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	default:
		return KindUnknown
	}
}

func message(kind Kind, host string, err error) string {
	shape := ShapeOf(host)
	switch kind {
	case KindTimeout:
		switch shape {
		case Loopback:
			return "connection to the local server timed out, make sure the OpenList service is running on this machine"
		case PrivateLAN:
			return "connection to the LAN server timed out, make sure the server is on the same network"
		default:
			return "connection to the server timed out"
		}
	case KindConnectionRefused:
		switch shape {
		case Loopback:
			return "cannot connect to the local server, make sure the OpenList service is running"
		case PrivateLAN:
			return "cannot connect to the LAN server, check the server address and network configuration"
		default:
			return "cannot connect to the server"
		}
	case KindHostUnresolved:
		return fmt.Sprintf("cannot resolve server address: %s", host)
	case KindTLS:
		return fmt.Sprintf("secure connection to %s failed: %v", host, err)
	default:
		return fmt.Sprintf("network request failed: %v", err)
	}
}
