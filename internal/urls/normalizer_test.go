package urls

import (
	"errors"
	"testing"
)

func TestNormalizer(t *testing.T) {
	t.Run("Normalize", func(t *testing.T) {
		n := New()
		tests := []struct {
			name  string
			input string
			want  string
			err   error
		}{
			{name: "empty", input: "", err: ErrEmpty},
			{name: "whitespace only", input: "   \t", err: ErrEmpty},
			{name: "bare ipv4 with port", input: "192.168.1.10:5244", want: "http://192.168.1.10:5244"},
			{name: "bare ipv4", input: "10.0.0.2", want: "http://10.0.0.2"},
			{name: "bare domain", input: "files.example.com", want: "http://files.example.com"},
			{name: "domain with port and padding", input: "  nas.example.org:8080  ", want: "http://nas.example.org:8080"},
			{name: "localhost", input: "localhost", want: "http://localhost"},
			{name: "localhost with port", input: "localhost:5244", want: "http://localhost:5244"},
			{name: "http passes through", input: "http://files.example.com", want: "http://files.example.com"},
			{name: "https kept by default", input: "https://files.example.com/", want: "https://files.example.com"},
			{name: "uppercase scheme", input: "HTTP://files.example.com", want: "http://files.example.com"},
			{name: "multiple trailing slashes", input: "http://files.example.com/alist///", want: "http://files.example.com/alist"},
			{name: "single label host", input: "nas", err: ErrUnrecognized},
			{name: "garbage", input: "not a url", err: ErrUnrecognized},
			{name: "ftp scheme", input: "ftp://files.example.com", err: ErrUnrecognized},
			{name: "scheme without host", input: "http:///path", err: ErrUnrecognized},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := n.Normalize(tt.input)
				if tt.err != nil {
					if !errors.Is(err, tt.err) {
						t.Fatalf("expected error %v, got %v (result %q)", tt.err, err, got)
					}
					return
				}
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
			})
		}
	})

	t.Run("Fragment Is Dropped", func(t *testing.T) {
		got, err := New().Normalize("http://example.com/#/")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "http://example.com" {
			t.Errorf("expected http://example.com, got %q", got)
		}
	})

	t.Run("Normalize Is Idempotent", func(t *testing.T) {
		inputs := []string{
			"192.168.1.10:5244",
			"files.example.com/",
			"localhost:5244",
			"HTTPS://Files.Example.com/dav/",
			"http://files.example.com/?a=1",
			"legacy.example.com",
			"http://example.com/#/",
		}
		normalizers := map[string]*Normalizer{
			"default":  New(),
			"forced":   New(WithForceHTTP(true)),
			"rewrites": New(WithHostRewrites(map[string]string{"legacy.example.com": "10.1.1.1"})),
		}

		for name, n := range normalizers {
			for _, in := range inputs {
				once, err := n.Normalize(in)
				if err != nil {
					t.Fatalf("%s: normalize(%q) failed: %v", name, in, err)
				}
				twice, err := n.Normalize(once)
				if err != nil {
					t.Fatalf("%s: normalize(%q) failed: %v", name, once, err)
				}
				if once != twice {
					t.Errorf("%s: expected idempotence for %q, got %q then %q", name, in, once, twice)
				}
			}
		}
	})

	t.Run("WithForceHTTP", func(t *testing.T) {
		n := New(WithForceHTTP(true))
		got, err := n.Normalize("https://files.example.com:8443/")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "http://files.example.com:8443" {
			t.Errorf("expected forced http, got %q", got)
		}
	})

	t.Run("WithHostRewrites", func(t *testing.T) {
		n := New(WithHostRewrites(map[string]string{"Legacy.Example.com": "10.1.1.1"}))

		got, err := n.Normalize("legacy.example.com:5244")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "http://10.1.1.1:5244" {
			t.Errorf("expected rewritten host with port kept, got %q", got)
		}

		got, _ = n.Normalize("https://legacy.example.com/path")
		if got != "https://10.1.1.1/path" {
			t.Errorf("expected rewritten host without port, got %q", got)
		}

		got, _ = n.Normalize("other.example.com")
		if got != "http://other.example.com" {
			t.Errorf("expected untouched host, got %q", got)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		n := New()
		tests := []struct {
			input string
			want  bool
		}{
			{"files.example.com", true},
			{"https://files.example.com:443/alist", true},
			{"192.168.1.10:5244", true},
			{"localhost:5244", true},
			{"http://localhost", true},
			{"", false},
			{"nas", false},
			{"http://nas", false},
			{"::::", false},
		}
		for _, tt := range tests {
			if got := n.Validate(tt.input); got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		}
	})
}

func TestAccessors(t *testing.T) {
	t.Run("Host", func(t *testing.T) {
		tests := []struct {
			in   string
			want string
		}{
			{"http://192.168.1.10:5244", "192.168.1.10"},
			{"https://files.example.com/alist", "files.example.com"},
			{"nas.local:5244", "nas.local"},
			{"", ""},
		}
		for _, tt := range tests {
			if got := Host(tt.in); got != tt.want {
				t.Errorf("Host(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("Port", func(t *testing.T) {
		tests := []struct {
			in   string
			want int
		}{
			{"http://localhost:8080", 8080},
			{"http://localhost", DefaultPort},
			{"http://localhost:99999", DefaultPort},
			{"%%%", DefaultPort},
		}
		for _, tt := range tests {
			if got := Port(tt.in); got != tt.want {
				t.Errorf("Port(%q) = %d, want %d", tt.in, got, tt.want)
			}
		}
	})

	t.Run("Protocol", func(t *testing.T) {
		tests := []struct {
			in   string
			want string
		}{
			{"https://files.example.com", "https"},
			{"HTTP://files.example.com", "http"},
			{"files.example.com", DefaultProtocol},
			{"localhost:5244", DefaultProtocol},
		}
		for _, tt := range tests {
			if got := Protocol(tt.in); got != tt.want {
				t.Errorf("Protocol(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("ValidPort", func(t *testing.T) {
		for _, p := range []string{"1", "5244", "65535", " 80 "} {
			if !ValidPort(p) {
				t.Errorf("expected %q to be valid", p)
			}
		}
		for _, p := range []string{"0", "65536", "-1", "http", ""} {
			if ValidPort(p) {
				t.Errorf("expected %q to be invalid", p)
			}
		}
	})

	t.Run("Suggestions", func(t *testing.T) {
		got := Suggestions("https://nas.local:5244/")
		if len(got) != 2 || got[0] != "http://nas.local:5244" || got[1] != "https://nas.local:5244" {
			t.Errorf("unexpected suggestions %v", got)
		}
		if Suggestions("  ") != nil {
			t.Error("expected no suggestions for blank input")
		}
	})
}
