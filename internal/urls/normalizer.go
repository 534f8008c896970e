// package urls turns user supplied server addresses into canonical base URLs.
//
// Addresses may arrive with or without a scheme ("nas.local:5244",
// "192.168.1.2", "localhost", "https://files.example.com/"). [Normalizer]
// infers the scheme, applies configured host rewrites, optionally forces
// plain http and trims trailing slashes. Normalization is idempotent.
package urls

import (
	"errors"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultPort     = 5244
	DefaultProtocol = "http"
)

var (
	ErrEmpty        = errors.New("empty")
	ErrUnrecognized = errors.New("unrecognized format")
)

var (
	protocolPattern  = regexp.MustCompile(`(?i)^https?://.+`)
	ipv4Pattern      = regexp.MustCompile(`^([0-9]{1,3}\.){3}[0-9]{1,3}(:[0-9]+)?$`)
	domainPattern    = regexp.MustCompile(`^[a-zA-Z0-9-]+(\.[a-zA-Z0-9-]+)*(\.[a-zA-Z]{2,})(:[0-9]+)?$`)
	localhostPattern = regexp.MustCompile(`^localhost(:[0-9]+)?$`)

	strictURLPattern    = regexp.MustCompile(`^https?://(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}(?::[0-9]+)?(?:/.*)?$`)
	ipURLPattern        = regexp.MustCompile(`^https?://(?:[0-9]{1,3}\.){3}[0-9]{1,3}(?::[0-9]+)?(?:/.*)?$`)
	localhostURLPattern = regexp.MustCompile(`^https?://localhost(?::[0-9]+)?(?:/.*)?$`)
)

// Normalizer canonicalizes server addresses. The zero value is usable.
type Normalizer struct {
	forceHTTP bool
	rewrites  map[string]string
}

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithForceHTTP rewrites https:// addresses to http://.
func WithForceHTTP(force bool) Option {
	return func(n *Normalizer) { n.forceHTTP = force }
}

// WithHostRewrites substitutes hosts (keys) with replacement hosts (values).
// Ports are preserved. Rule targets should not themselves be rule sources.
func WithHostRewrites(rules map[string]string) Option {
	return func(n *Normalizer) {
		n.rewrites = make(map[string]string, len(rules))
		for from, to := range rules {
			n.rewrites[strings.ToLower(from)] = to
		}
	}
}

// New creates a [Normalizer].
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns the canonical base URL for input or [ErrEmpty]/[ErrUnrecognized].
func (n *Normalizer) Normalize(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrEmpty
	}

	switch {
	case protocolPattern.MatchString(s):
	case ipv4Pattern.MatchString(s), domainPattern.MatchString(s), localhostPattern.MatchString(s):
		s = DefaultProtocol + "://" + s
	default:
		return "", ErrUnrecognized
	}

	return n.rewrite(s)
}

func (n *Normalizer) rewrite(s string) (string, error) {
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", ErrUnrecognized
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if n.forceHTTP {
		u.Scheme = "http"
	}

	if to, ok := n.rewrites[strings.ToLower(u.Hostname())]; ok {
		if port := u.Port(); port != "" {
			u.Host = net.JoinHostPort(to, port)
		} else {
			u.Host = to
		}
	}

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.Fragment = ""
	u.RawFragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// Validate reports whether input normalizes to a domain, IPv4 or localhost URL.
func (n *Normalizer) Validate(input string) bool {
	normalized, err := n.Normalize(input)
	if err != nil {
		return false
	}
	if _, err := url.Parse(normalized); err != nil {
		return false
	}
	return strictURLPattern.MatchString(normalized) ||
		ipURLPattern.MatchString(normalized) ||
		localhostURLPattern.MatchString(normalized)
}

// Host returns the host name of raw, or raw itself when it cannot be parsed.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		if !strings.Contains(raw, "://") {
			if u, err := url.Parse(DefaultProtocol + "://" + strings.TrimSpace(raw)); err == nil && u.Hostname() != "" {
				return u.Hostname()
			}
		}
		return raw
	}
	return u.Hostname()
}

// Port returns the explicit port of raw, or [DefaultPort] when absent or invalid.
func Port(raw string) int {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPort
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil || p < 1 || p > 65535 {
		return DefaultPort
	}
	return p
}

// Protocol returns the scheme of raw, or [DefaultProtocol].
func Protocol(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return DefaultProtocol
	}
	switch scheme := strings.ToLower(u.Scheme); scheme {
	case "http", "https":
		return scheme
	default:
		return DefaultProtocol
	}
}

// ValidPort reports whether s is a port number in 1..65535.
func ValidPort(s string) bool {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && p >= 1 && p <= 65535
}

// Suggestions offers explicit http and https variants for an address the user typed.
func Suggestions(input string) []string {
	s := strings.TrimRight(strings.TrimSpace(input), "/")
	if s == "" {
		return nil
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	return []string{"http://" + s, "https://" + s}
}
