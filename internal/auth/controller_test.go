package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/olx/internal/connectivity"
	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/notify"
	"github.com/desertthunder/olx/internal/pipeline"
	"github.com/desertthunder/olx/internal/secrets"
	"github.com/desertthunder/olx/internal/services"
	"github.com/desertthunder/olx/internal/shared"
	tu "github.com/desertthunder/olx/internal/testing"
)

type fakeNetwork struct{ info connectivity.NetworkInfo }

func (n fakeNetwork) IsConnected() bool                  { return n.info.Connected }
func (n fakeNetwork) IsAvailableForRequests() bool       { return n.info.AvailableForRequests() }
func (n fakeNetwork) Recommendation() string             { return n.info.Quality.Recommendation() }
func (n fakeNetwork) Snapshot() connectivity.NetworkInfo { return n.info }

var online = fakeNetwork{connectivity.Evaluate(connectivity.Capabilities{
	Transport: connectivity.Ethernet, HasInternet: true, Validated: true, NotMetered: true,
})}

type recorder struct {
	mu       sync.Mutex
	attempts []*models.LoginAttempt
}

func (r *recorder) Create(a *models.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *recorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, a := range r.attempts {
		out = append(out, a.Outcome())
	}
	return out
}

// stubAPI lets a test control when a login returns.
type stubAPI struct {
	release   chan struct{}
	loginErr  error
	logoutErr error
	calls     int
	mu        sync.Mutex
}

func (s *stubAPI) Login(ctx context.Context, username, password string) (*models.LoginResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return &models.LoginResult{Token: "late-token"}, nil
}

func (s *stubAPI) Me(context.Context) (*models.User, error) { return &models.User{Username: "u"}, nil }
func (s *stubAPI) Logout(context.Context) error             { return s.logoutErr }

func (s *stubAPI) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newStore(t *testing.T) *secrets.Store {
	t.Helper()
	aead, err := secrets.NewAEAD([]byte("controller-test"), []byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("failed to create aead: %v", err)
	}
	return secrets.New(aead, nil)
}

func httpFactory(baseURL string, tokens oauth2.TokenSource) API {
	client := pipeline.NewClient(pipeline.Options{BaseDelay: time.Millisecond, Tokens: tokens})
	return services.NewAPIService(baseURL, client)
}

type fixture struct {
	fake     *tu.FakeOpenList
	store    *secrets.Store
	errors   *notify.Manager
	attempts *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fake:     tu.NewFakeOpenList(t, "admin", "secret"),
		store:    newStore(t),
		errors:   notify.NewManager(),
		attempts: &recorder{},
	}
	f.store.Put(secrets.KeyServerURL, f.fake.URL)
	return f
}

func (f *fixture) controller(network Network) *Controller {
	return NewController(Options{
		Store:    f.store,
		API:      httpFactory,
		Network:  network,
		Errors:   f.errors,
		Attempts: f.attempts,
	})
}

func (f *fixture) remember(username, password string) {
	f.store.PutBool(secrets.KeyRememberMe, true)
	f.store.Put(secrets.KeyUsername, username)
	f.store.Put(secrets.KeyPassword, password)
}

func TestControllerStart(t *testing.T) {
	t.Run("Initial State", func(t *testing.T) {
		c := newFixture(t).controller(online)
		if got := c.State().Auth.Kind; got != AuthInitial {
			t.Errorf("expected initial, got %v", got)
		}
		if got := c.State().AutoLogin.Kind; got != AutoIdle {
			t.Errorf("expected idle, got %v", got)
		}
	})

	t.Run("No Token Skips Validation", func(t *testing.T) {
		f := newFixture(t)
		c := f.controller(online)

		if got := c.Start(context.Background()); got.Kind != AuthNotAuthenticated {
			t.Errorf("expected not authenticated, got %v", got)
		}
		if n := f.fake.TotalHits(); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
	})

	t.Run("Valid Token", func(t *testing.T) {
		f := newFixture(t)
		tok := tu.SignedToken("admin", time.Now().Add(time.Hour))
		f.fake.SetToken(tok)
		f.store.Put(secrets.KeyAuthToken, tok)
		c := f.controller(online)

		if got := c.Start(context.Background()); got.Kind != AuthAuthenticated {
			t.Fatalf("expected authenticated, got %v", got)
		}
		if n := f.fake.Hits("GET /api/auth/me"); n != 1 {
			t.Errorf("expected 1 validation call, got %d", n)
		}
		if c.Token() != tok {
			t.Error("expected cached token")
		}
	})

	t.Run("Rejected Token Clears Credentials", func(t *testing.T) {
		f := newFixture(t)
		f.remember("admin", "secret")
		f.store.Put(secrets.KeyAuthToken, "stale")
		c := f.controller(online)

		if got := c.Start(context.Background()); got.Kind != AuthNotAuthenticated {
			t.Fatalf("expected not authenticated, got %v", got)
		}
		for _, key := range []string{secrets.KeyAuthToken, secrets.KeyUsername, secrets.KeyPassword} {
			if f.store.Contains(key) {
				t.Errorf("expected %s cleared", key)
			}
		}
		if f.store.Get(secrets.KeyServerURL, "") != f.fake.URL {
			t.Error("expected server url kept")
		}
	})

	t.Run("Expired Token Skips Round Trip", func(t *testing.T) {
		f := newFixture(t)
		f.store.Put(secrets.KeyAuthToken, tu.SignedToken("admin", time.Now().Add(-time.Hour)))
		c := f.controller(online)

		if got := c.Start(context.Background()); got.Kind != AuthNotAuthenticated {
			t.Fatalf("expected not authenticated, got %v", got)
		}
		if n := f.fake.TotalHits(); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
		if f.store.Contains(secrets.KeyAuthToken) {
			t.Error("expected expired token removed")
		}
	})
}

func TestControllerLogin(t *testing.T) {
	t.Run("Success Without Remember", func(t *testing.T) {
		f := newFixture(t)
		c := f.controller(online)

		if got := c.Login(context.Background(), "admin", "secret", false); got.Kind != AuthAuthenticated {
			t.Fatalf("expected authenticated, got %v", got)
		}
		if c.Token() == "" {
			t.Error("expected session token in memory")
		}
		if f.store.Contains(secrets.KeyPassword) {
			t.Error("expected password not persisted")
		}
		if got := f.store.Get(secrets.KeyUsername, ""); got != "admin" {
			t.Errorf("expected username persisted, got %q", got)
		}

		hits := f.fake.TotalHits()
		restarted := f.controller(online)
		if got := restarted.Start(context.Background()); got.Kind != AuthNotAuthenticated {
			t.Errorf("expected not authenticated after restart, got %v", got)
		}
		if f.fake.TotalHits() != hits {
			t.Error("expected no validation call after restart")
		}
		if got := f.attempts.outcomes(); len(got) != 1 || got[0] != models.OutcomeSuccess {
			t.Errorf("expected one successful attempt, got %v", got)
		}
	})

	t.Run("Success With Remember", func(t *testing.T) {
		f := newFixture(t)
		c := f.controller(online)
		c.Login(context.Background(), "admin", "secret", true)

		if got := f.store.Get(secrets.KeyPassword, ""); got != "secret" {
			t.Errorf("expected password persisted, got %q", got)
		}

		restarted := f.controller(online)
		if got := restarted.Start(context.Background()); got.Kind != AuthAuthenticated {
			t.Errorf("expected authenticated after restart, got %v", got)
		}
		if got := restarted.Credentials().Password; got == "secret" {
			t.Error("expected password redacted")
		}
	})

	t.Run("Wrong Password", func(t *testing.T) {
		f := newFixture(t)
		c := f.controller(online)

		got := c.Login(context.Background(), "admin", "wrong", false)
		if got.Kind != AuthError || got.Message != "invalid username or password" {
			t.Errorf("unexpected state %v", got)
		}

		items := f.errors.Items()
		if len(items) != 1 || items[0].Priority != notify.Critical {
			t.Errorf("expected one critical notification, got %+v", items)
		}
	})

	t.Run("Blank Fields", func(t *testing.T) {
		f := newFixture(t)
		c := f.controller(online)

		got := c.Login(context.Background(), " ", "", false)
		if got.Kind != AuthError || got.Message != "required fields: username, password" {
			t.Errorf("unexpected state %v", got)
		}
		if n := f.fake.TotalHits(); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
	})

	t.Run("Network Gate", func(t *testing.T) {
		tests := []struct {
			name string
			caps connectivity.Capabilities
			want string
		}{
			{"No Network", connectivity.Capabilities{}, "device is not connected to a network"},
			{"Not Validated", connectivity.Capabilities{Transport: connectivity.WiFi, HasInternet: true}, "connected but internet access is not validated"},
			{"Poor Quality", connectivity.Capabilities{Transport: connectivity.Unknown, HasInternet: true, Validated: true}, connectivity.Poor.Recommendation()},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				c := f.controller(fakeNetwork{connectivity.Evaluate(tt.caps)})

				got := c.Login(context.Background(), "admin", "secret", false)
				if got.Kind != AuthError || got.Message != tt.want {
					t.Errorf("expected error %q, got %v", tt.want, got)
				}
				if n := f.fake.TotalHits(); n != 0 {
					t.Errorf("expected no requests, got %d", n)
				}
			})
		}
	})

	t.Run("Server Unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.fake.FailWith("POST /api/auth/login", 503)
		c := f.controller(online)

		got := c.Login(context.Background(), "admin", "secret", false)
		if got.Kind != AuthError {
			t.Fatalf("expected error, got %v", got)
		}
		if got.Message != "login failed: service temporarily unavailable" {
			t.Errorf("unexpected message %q", got.Message)
		}
	})
}

func TestControllerLogout(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture) Factory
	}{
		{"Remote Succeeds", func(f *fixture) Factory { return httpFactory }},
		{"Remote Not Found", func(f *fixture) Factory {
			f.fake.FailWith("POST /api/auth/logout", 404)
			return httpFactory
		}},
		{"Remote Unreachable", func(f *fixture) Factory {
			stub := &stubAPI{logoutErr: &pipeline.Error{Kind: pipeline.KindConnectionRefused, Message: "refused"}}
			return func(string, oauth2.TokenSource) API { return stub }
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			login := f.controller(online)
			if got := login.Login(context.Background(), "admin", "secret", true); got.Kind != AuthAuthenticated {
				t.Fatalf("login failed: %v", got)
			}

			c := NewController(Options{Store: f.store, API: tc.setup(f), Network: online})
			c.Start(context.Background())

			if got := c.Logout(context.Background()); got.Kind != AuthNotAuthenticated {
				t.Errorf("expected not authenticated, got %v", got)
			}
			for _, key := range []string{secrets.KeyAuthToken, secrets.KeyUsername, secrets.KeyPassword, secrets.KeyRememberMe} {
				if f.store.Contains(key) {
					t.Errorf("expected %s cleared", key)
				}
			}
			if c.Token() != "" {
				t.Error("expected cached token cleared")
			}
		})
	}
}

func TestControllerAutoLogin(t *testing.T) {
	t.Run("No Credentials", func(t *testing.T) {
		f := newFixture(t)
		c := f.controller(online)

		if got := c.AttemptAutoLogin(context.Background()); got.Kind != AutoNoCredentials {
			t.Errorf("expected no credentials, got %v", got)
		}
		if got := c.State().Auth.Kind; got != AuthNotAuthenticated {
			t.Errorf("expected not authenticated, got %v", got)
		}
	})

	t.Run("Blank Saved Fields", func(t *testing.T) {
		f := newFixture(t)
		f.remember("  ", "secret")
		c := f.controller(online)

		if got := c.AttemptAutoLogin(context.Background()); got.Kind != AutoInvalidCredentials {
			t.Errorf("expected invalid credentials, got %v", got)
		}
		if f.store.Contains(secrets.KeyPassword) {
			t.Error("expected stored credentials cleared")
		}
	})

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		f.remember("admin", "secret")
		c := f.controller(online)

		if got := c.AttemptAutoLogin(context.Background()); got.Kind != AutoSuccess {
			t.Fatalf("expected success, got %v", got)
		}
		if got := c.State().Auth.Kind; got != AuthAuthenticated {
			t.Errorf("expected authenticated, got %v", got)
		}
		if f.store.Get(secrets.KeyAuthToken, "") != f.fake.Token() {
			t.Error("expected issued token persisted")
		}
	})

	t.Run("Network Unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.store.Put(secrets.KeyServerURL, "h:5244")
		f.remember("u", "p")
		c := f.controller(fakeNetwork{connectivity.Disconnected})

		got := c.AttemptAutoLogin(context.Background())
		if got.Kind != AutoFailed || got.Message == "" {
			t.Errorf("expected failed with a reason, got %v", got)
		}
		if got := c.State().Auth.Kind; got != AuthNotAuthenticated {
			t.Errorf("expected not authenticated, got %v", got)
		}
		if n := f.fake.TotalHits(); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
		if got := f.attempts.outcomes(); len(got) != 1 || got[0] != models.OutcomeSkipped {
			t.Errorf("expected skipped attempt, got %v", got)
		}
	})

	t.Run("Rejected Credentials Queue A Retry", func(t *testing.T) {
		f := newFixture(t)
		f.remember("admin", "changed")
		c := f.controller(online)

		got := c.AttemptAutoLogin(context.Background())
		if got.Kind != AutoFailed || got.Message != "invalid username or password" {
			t.Errorf("unexpected state %v", got)
		}
		if got := c.State().Auth.Kind; got != AuthError {
			t.Errorf("expected auth error, got %v", got)
		}

		items := f.errors.Items()
		if len(items) != 1 || items[0].Retry == nil {
			t.Errorf("expected one notification with a retry action, got %+v", items)
		}
	})

	t.Run("Cancel Wins Over Late Success", func(t *testing.T) {
		f := newFixture(t)
		f.remember("admin", "secret")
		stub := &stubAPI{release: make(chan struct{})}
		c := NewController(Options{
			Store:   f.store,
			API:     func(string, oauth2.TokenSource) API { return stub },
			Network: online,
		})

		done := make(chan AutoLoginState)
		go func() { done <- c.AttemptAutoLogin(context.Background()) }()

		deadline := time.Now().Add(2 * time.Second)
		for stub.count() == 0 {
			if time.Now().After(deadline) {
				t.Fatal("login call never started")
			}
			time.Sleep(time.Millisecond)
		}

		if !c.CancelAutoLogin() {
			t.Fatal("expected cancel to apply")
		}
		close(stub.release)

		if got := <-done; got.Kind != AutoCancelled {
			t.Errorf("expected cancelled, got %v", got)
		}
		if got := c.State().Auth.Kind; got != AuthNotAuthenticated {
			t.Errorf("expected not authenticated, got %v", got)
		}
		if f.store.Contains(secrets.KeyAuthToken) {
			t.Error("expected late token discarded")
		}
	})

	t.Run("Manual Login Wins Over Late Failure", func(t *testing.T) {
		f := newFixture(t)
		f.remember("admin", "stale")
		auto := &stubAPI{release: make(chan struct{}), loginErr: shared.ErrAuthFailed}
		manual := &stubAPI{}
		var mu sync.Mutex
		first := true
		c := NewController(Options{
			Store: f.store,
			API: func(string, oauth2.TokenSource) API {
				mu.Lock()
				defer mu.Unlock()
				if first {
					first = false
					return auto
				}
				return manual
			},
			Network:  online,
			Errors:   f.errors,
			Attempts: f.attempts,
		})

		done := make(chan AutoLoginState)
		go func() { done <- c.AttemptAutoLogin(context.Background()) }()

		deadline := time.Now().Add(2 * time.Second)
		for auto.count() == 0 {
			if time.Now().After(deadline) {
				t.Fatal("auto login call never started")
			}
			time.Sleep(time.Millisecond)
		}

		if got := c.Login(context.Background(), "admin", "secret", true); got.Kind != AuthAuthenticated {
			t.Fatalf("expected manual login to succeed, got %v", got)
		}
		close(auto.release)

		if got := <-done; got.Kind != AutoCancelled {
			t.Errorf("expected superseded auto login, got %v", got)
		}
		if got := c.State().Auth.Kind; got != AuthAuthenticated {
			t.Errorf("expected authenticated, got %v", got)
		}
		if f.store.Get(secrets.KeyAuthToken, "") != "late-token" {
			t.Error("expected manual login token kept")
		}
		if items := f.errors.Items(); len(items) != 0 {
			t.Errorf("expected no notification for the abandoned attempt, got %+v", items)
		}
	})

	t.Run("Cancel When Idle", func(t *testing.T) {
		c := newFixture(t).controller(online)
		if c.CancelAutoLogin() {
			t.Error("expected cancel to be ignored")
		}
	})
}

func TestControllerSettings(t *testing.T) {
	t.Run("Save Server URL", func(t *testing.T) {
		f := newFixture(t)
		c := f.controller(online)

		ok, err := c.SaveServerURL("192.168.1.5:5244")
		if !ok || err != nil {
			t.Fatalf("expected save, got %v %v", ok, err)
		}
		if got := f.store.Get(secrets.KeyServerURL, ""); got != "http://192.168.1.5:5244" {
			t.Errorf("expected normalized url, got %q", got)
		}
	})

	t.Run("Save Empty Clears", func(t *testing.T) {
		f := newFixture(t)
		c := f.controller(online)

		c.SaveServerURL("")
		if f.store.Contains(secrets.KeyServerURL) {
			t.Error("expected server url removed")
		}
		if got := c.ServerURL(); got != DefaultServerURL {
			t.Errorf("expected default url, got %q", got)
		}
	})

	t.Run("Save Invalid", func(t *testing.T) {
		c := newFixture(t).controller(online)
		if ok, err := c.SaveServerURL("not a url"); ok || err == nil {
			t.Errorf("expected rejection, got %v %v", ok, err)
		}
	})

	t.Run("Clear Error", func(t *testing.T) {
		c := newFixture(t).controller(online)
		c.Login(context.Background(), "", "", false)
		c.ClearError()
		if got := c.State().Auth.Kind; got != AuthNotAuthenticated {
			t.Errorf("expected not authenticated, got %v", got)
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		c := newFixture(t).controller(online)
		ch, cancel := c.Subscribe()
		defer cancel()

		<-ch
		c.Login(context.Background(), "", "", false)

		select {
		case s := <-ch:
			if s.Auth.Kind != AuthError {
				t.Errorf("expected latest state to be error, got %v", s.Auth)
			}
		case <-time.After(time.Second):
			t.Fatal("expected a published state")
		}
	})
}

func TestExpired(t *testing.T) {
	now := time.Now()
	if !expired(tu.SignedToken("a", now.Add(-time.Minute)), now) {
		t.Error("expected past exp to be expired")
	}
	if expired(tu.SignedToken("a", now.Add(time.Minute)), now) {
		t.Error("expected future exp to be valid")
	}
	if expired("opaque-token", now) {
		t.Error("expected opaque token to be treated as valid")
	}
}
