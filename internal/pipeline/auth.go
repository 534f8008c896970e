package pipeline

import (
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// TokenSourceFunc adapts a function to [oauth2.TokenSource].
type TokenSourceFunc func() (*oauth2.Token, error)

func (f TokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

// BearerToken returns a source yielding the current result of get. An empty
// string yields no token and requests go out unauthenticated.
func BearerToken(get func() string) oauth2.TokenSource {
	return TokenSourceFunc(func() (*oauth2.Token, error) {
		tok := get()
		if tok == "" {
			return nil, nil
		}
		return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
	})
}

// authTransport sets the JSON content headers and the bearer token, when there is one.
type authTransport struct {
	next      http.RoundTripper
	source    oauth2.TokenSource
	userAgent string
	logger    *log.Logger
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		r.Header.Set("User-Agent", t.userAgent)
	}

	if t.source != nil {
		tok, err := t.source.Token()
		switch {
		case err != nil:
			t.logger.Debug("token unavailable, sending unauthenticated", "err", err)
		case tok != nil && tok.AccessToken != "":
			tok.SetAuthHeader(r)
		}
	}

	return t.next.RoundTrip(r)
}
