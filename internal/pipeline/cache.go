package pipeline

import (
	"net/http"
	"strings"
)

// CacheHint is applied to successful responses without an explicit cache policy.
const CacheHint = "public, max-age=60"

type cacheTransport struct {
	next http.RoundTripper
}

func (t *cacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && needsHint(resp.Header.Get("Cache-Control")) {
		if resp.Header == nil {
			resp.Header = make(http.Header)
		}
		resp.Header.Set("Cache-Control", CacheHint)
	}
	return resp, nil
}

// needsHint reports whether the Cache-Control value cc leaves caching unspecified.
func needsHint(cc string) bool {
	for _, d := range strings.Split(cc, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(d), "=")
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "no-cache", "no-store", "must-revalidate", "max-age":
			return false
		}
	}
	return true
}
