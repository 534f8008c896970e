// Package auth owns the credential lifecycle: startup token validation,
// unattended auto-login, manual login and logout.
//
// The [Controller] is the only writer of [State]. Readers poll [Controller.State]
// or receive snapshots from [Controller.Subscribe]. Every failure ends in a
// state update and, for login failures, an entry in the notification queue.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/desertthunder/olx/internal/connectivity"
	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/notify"
	"github.com/desertthunder/olx/internal/pipeline"
	"github.com/desertthunder/olx/internal/secrets"
	"github.com/desertthunder/olx/internal/shared"
	"github.com/desertthunder/olx/internal/urls"
)

// DefaultServerURL is used when no server address has been saved.
const DefaultServerURL = "http://localhost:5244"

// API is the subset of the remote API the controller calls.
type API interface {
	Login(ctx context.Context, username, password string) (*models.LoginResult, error)
	Me(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
}

// Factory builds an [API] for baseURL that authenticates with tokens.
type Factory func(baseURL string, tokens oauth2.TokenSource) API

// Network is the connectivity view consulted before any login call.
// [*connectivity.Monitor] satisfies it.
type Network interface {
	pipeline.Gate
	Snapshot() connectivity.NetworkInfo
}

// Recorder persists login attempts.
type Recorder interface {
	Create(attempt *models.LoginAttempt) error
}

// Options configures a [Controller]. Store and API are required.
type Options struct {
	Store      *secrets.Store
	API        Factory
	Network    Network
	Errors     *notify.Manager
	Normalizer *urls.Normalizer
	Attempts   Recorder
	DefaultURL string
	Logger     *log.Logger
}

// Controller drives [AuthState] and [AutoLoginState].
type Controller struct {
	store      *secrets.Store
	api        Factory
	network    Network
	errors     *notify.Manager
	normalizer *urls.Normalizer
	attempts   Recorder
	defaultURL string
	logger     *log.Logger

	state atomic.Pointer[State]

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	subs       map[int]chan State
	nextSub    int
}

// NewController creates a controller in [AuthInitial] / [AutoIdle].
func NewController(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Normalizer == nil {
		opts.Normalizer = urls.New()
	}
	if opts.DefaultURL == "" {
		opts.DefaultURL = DefaultServerURL
	}

	c := &Controller{
		store:      opts.Store,
		api:        opts.API,
		network:    opts.Network,
		errors:     opts.Errors,
		normalizer: opts.Normalizer,
		attempts:   opts.Attempts,
		defaultURL: opts.DefaultURL,
		logger:     opts.Logger,
		subs:       make(map[int]chan State),
	}
	c.state.Store(&State{})
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State { return *c.state.Load() }

// Token returns the session token, empty when logged out.
func (c *Controller) Token() string { return c.state.Load().Credentials.Token }

// Credentials returns the cached credentials with secrets masked.
func (c *Controller) Credentials() Credentials { return c.State().Credentials.Redacted() }

// Subscribe returns a channel that receives every new snapshot.
// A slow reader only sees the most recent one.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 1)
	ch <- *c.state.Load()
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
}

// update applies fn to a copy of the state and publishes it. Callers hold c.mu.
func (c *Controller) update(fn func(*State)) {
	next := *c.state.Load()
	fn(&next)
	c.state.Store(&next)

	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

func (c *Controller) set(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update(fn)
}

func (c *Controller) setAuth(kind AuthKind, message string) {
	c.set(func(s *State) { s.Auth = AuthState{Kind: kind, Message: message} })
}

func (c *Controller) tokens() oauth2.TokenSource { return pipeline.BearerToken(c.Token) }

// load reads the persisted credentials.
func (c *Controller) load() Credentials {
	return Credentials{
		ServerURL:  c.store.Get(secrets.KeyServerURL, ""),
		Username:   c.store.Get(secrets.KeyUsername, ""),
		Password:   c.store.Get(secrets.KeyPassword, ""),
		Token:      c.store.Get(secrets.KeyAuthToken, ""),
		RememberMe: c.store.GetBool(secrets.KeyRememberMe, false),
	}
}

// persist saves a successful login. The password and token are kept only when remember is set.
func (c *Controller) persist(creds Credentials) {
	ok := c.store.PutBool(secrets.KeyRememberMe, creds.RememberMe) &&
		c.store.Put(secrets.KeyUsername, creds.Username)
	if creds.RememberMe {
		ok = c.store.Put(secrets.KeyPassword, creds.Password) && c.store.Put(secrets.KeyAuthToken, creds.Token) && ok
	} else {
		c.store.Remove(secrets.KeyPassword)
		c.store.Remove(secrets.KeyAuthToken)
	}
	if !ok {
		c.logger.Warn("could not persist credentials, session is in memory only")
	}
}

// forget removes the persisted credentials. The server URL is kept.
func (c *Controller) forget() {
	for _, key := range []string{secrets.KeyAuthToken, secrets.KeyUsername, secrets.KeyPassword, secrets.KeyRememberMe} {
		c.store.Remove(key)
	}
}

// ServerURL returns the saved server URL or the default.
func (c *Controller) ServerURL() string {
	if u := strings.TrimSpace(c.store.Get(secrets.KeyServerURL, "")); u != "" {
		return u
	}
	return c.defaultURL
}

// Start loads persisted credentials and validates a saved token against the server.
// A token that is locally expired is discarded without a round trip.
func (c *Controller) Start(ctx context.Context) AuthState {
	creds := c.load()
	c.set(func(s *State) { s.Credentials = creds })

	if creds.Token == "" || creds.ServerURL == "" {
		c.logger.Debug("no saved session", "token", creds.Token != "", "server", creds.ServerURL != "")
		c.setAuth(AuthNotAuthenticated, "")
		return c.State().Auth
	}

	if expired(creds.Token, time.Now()) {
		c.logger.Info("saved token expired")
		c.reset()
		return c.State().Auth
	}

	c.setAuth(AuthLoading, "")
	if _, err := c.api(creds.ServerURL, c.tokens()).Me(ctx); err != nil {
		c.logger.Warn("saved token rejected", "err", err)
		c.reset()
		return c.State().Auth
	}

	c.setAuth(AuthAuthenticated, "")
	return c.State().Auth
}

// reset clears persisted and cached credentials and ends in [AuthNotAuthenticated].
func (c *Controller) reset() {
	c.forget()
	server := c.store.Get(secrets.KeyServerURL, "")
	c.set(func(s *State) {
		s.Credentials = Credentials{ServerURL: server}
		s.Auth = AuthState{Kind: AuthNotAuthenticated}
	})
}

// expired reports whether tok is a JWT whose exp claim is before now.
// Opaque tokens are never considered expired.
func expired(tok string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(now)
}

// gate runs the connectivity and quality checks for serverURL.
// It returns an empty string when the login may proceed.
func (c *Controller) gate(serverURL string) string {
	if c.network == nil {
		return ""
	}
	err := pipeline.Check(c.network, urls.Host(serverURL))
	if err == nil {
		return ""
	}
	if err.Kind != pipeline.KindNotConnected {
		return err.Message
	}

	info := c.network.Snapshot()
	switch {
	case !info.HasInternet:
		return "device is not connected to a network"
	case !info.Validated:
		return "connected but internet access is not validated"
	default:
		return "network unavailable, check network settings"
	}
}

// failureMessage renders a login error for inline display.
func failureMessage(err error) string {
	var pe *pipeline.Error
	switch {
	case errors.Is(err, shared.ErrAuthFailed):
		return "invalid username or password"
	case errors.As(err, &pe) && pe.IsNetwork():
		return "network error: " + pe.Error()
	default:
		return "login failed: " + err.Error()
	}
}

func (c *Controller) record(serverURL, username string, automatic bool, outcome, message string) {
	if c.attempts == nil {
		return
	}
	if err := c.attempts.Create(models.NewLoginAttempt(serverURL, username, automatic, outcome, message)); err != nil {
		c.logger.Warn("failed to record login attempt", "err", err)
	}
}

func (c *Controller) notify(err error, retry func()) {
	if c.errors != nil {
		c.errors.AddError(err, retry)
	}
}

// beginAttempt starts a new auto-login generation, cancelling any previous one.
func (c *Controller) beginAttempt(ctx context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	ctx, c.cancel = context.WithCancel(ctx)
	c.update(func(s *State) { s.AutoLogin = AutoLoginState{Kind: AutoAttempting} })
	return ctx, c.generation
}

func (c *Controller) endAttempt(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// current reports whether gen is still the live attempt.
func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation && c.state.Load().AutoLogin.Kind == AutoAttempting
}

// commit runs fn and publishes its result only while gen is the live attempt.
func (c *Controller) commit(gen uint64, fn func(*State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state.Load().AutoLogin.Kind != AutoAttempting {
		return false
	}
	c.update(fn)
	return true
}

// AttemptAutoLogin logs in with remembered credentials and returns the
// resulting auto-login state. A concurrent [Controller.CancelAutoLogin] wins
// over whatever the in-flight call returns.
func (c *Controller) AttemptAutoLogin(ctx context.Context) AutoLoginState {
	ctx, gen := c.beginAttempt(ctx)
	defer c.endAttempt(gen)

	creds := c.load()
	if !creds.RememberMe || creds.Username == "" || creds.Password == "" {
		c.commit(gen, func(s *State) {
			s.AutoLogin = AutoLoginState{Kind: AutoNoCredentials}
			s.Auth = AuthState{Kind: AuthNotAuthenticated}
		})
		return c.State().AutoLogin
	}

	if strings.TrimSpace(creds.ServerURL) == "" || strings.TrimSpace(creds.Username) == "" || strings.TrimSpace(creds.Password) == "" {
		c.logger.Info("clearing incomplete saved credentials")
		c.commit(gen, func(s *State) {
			c.forget()
			s.Credentials = Credentials{ServerURL: creds.ServerURL}
			s.AutoLogin = AutoLoginState{Kind: AutoInvalidCredentials}
			s.Auth = AuthState{Kind: AuthNotAuthenticated}
		})
		return c.State().AutoLogin
	}

	if msg := c.gate(creds.ServerURL); msg != "" {
		c.logger.Info("auto login skipped", "reason", msg)
		c.commit(gen, func(s *State) {
			s.AutoLogin = AutoLoginState{Kind: AutoFailed, Message: msg}
			s.Auth = AuthState{Kind: AuthNotAuthenticated}
		})
		c.record(creds.ServerURL, creds.Username, true, models.OutcomeSkipped, msg)
		return c.State().AutoLogin
	}

	if !c.current(gen) {
		return c.State().AutoLogin
	}

	res, err := c.api(creds.ServerURL, c.tokens()).Login(ctx, creds.Username, creds.Password)
	if err != nil {
		msg := failureMessage(err)
		if !c.commit(gen, func(s *State) {
			s.AutoLogin = AutoLoginState{Kind: AutoFailed, Message: msg}
			s.Auth = AuthState{Kind: AuthError, Message: msg}
		}) {
			c.record(creds.ServerURL, creds.Username, true, models.OutcomeCancelled, "")
			return c.State().AutoLogin
		}
		c.logger.Warn("auto login failed", "server", creds.ServerURL, "err", err)
		retryCtx := context.WithoutCancel(ctx)
		c.notify(err, func() { go c.AttemptAutoLogin(retryCtx) })
		c.record(creds.ServerURL, creds.Username, true, models.OutcomeFailed, msg)
		return c.State().AutoLogin
	}

	creds.Token = res.Token
	if !c.commit(gen, func(s *State) {
		c.persist(creds)
		s.Credentials = creds
		s.AutoLogin = AutoLoginState{Kind: AutoSuccess}
		s.Auth = AuthState{Kind: AuthAuthenticated}
	}) {
		c.logger.Debug("discarding auto login result after cancel")
		c.record(creds.ServerURL, creds.Username, true, models.OutcomeCancelled, "")
		return c.State().AutoLogin
	}

	c.logger.Info("auto login succeeded", "server", creds.ServerURL, "user", creds.Username)
	c.record(creds.ServerURL, creds.Username, true, models.OutcomeSuccess, "")
	return c.State().AutoLogin
}

// CancelAutoLogin aborts an in-flight auto-login. It reports false when no attempt is running.
func (c *Controller) CancelAutoLogin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.abortAttemptLocked() {
		return false
	}
	c.update(func(s *State) { s.Auth = AuthState{Kind: AuthNotAuthenticated} })
	c.logger.Info("auto login cancelled")
	return true
}

// abortAttemptLocked retires the in-flight auto-login, if any, so that its
// result is never committed. Callers hold c.mu.
func (c *Controller) abortAttemptLocked() bool {
	if c.state.Load().AutoLogin.Kind != AutoAttempting {
		return false
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	c.update(func(s *State) { s.AutoLogin = AutoLoginState{Kind: AutoCancelled} })
	return true
}

// Login authenticates with the saved (or default) server.
// Validation and connectivity failures never reach the network. An
// auto-login still in flight is abandoned and its result discarded.
func (c *Controller) Login(ctx context.Context, username, password string, remember bool) AuthState {
	c.mu.Lock()
	if c.abortAttemptLocked() {
		c.logger.Info("auto login superseded by manual login")
	}
	c.mu.Unlock()
	c.setAuth(AuthLoading, "")

	var missing []string
	if strings.TrimSpace(username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(password) == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		c.setAuth(AuthError, "required fields: "+strings.Join(missing, ", "))
		return c.State().Auth
	}

	serverURL := c.ServerURL()
	if msg := c.gate(serverURL); msg != "" {
		c.setAuth(AuthError, msg)
		c.record(serverURL, username, false, models.OutcomeSkipped, msg)
		return c.State().Auth
	}

	res, err := c.api(serverURL, c.tokens()).Login(ctx, username, password)
	if err != nil {
		msg := failureMessage(err)
		c.logger.Warn("login failed", "server", serverURL, "user", username, "err", err)
		c.notify(err, nil)
		c.setAuth(AuthError, msg)
		c.record(serverURL, username, false, models.OutcomeFailed, msg)
		return c.State().Auth
	}

	creds := Credentials{
		ServerURL:  serverURL,
		Username:   username,
		Password:   password,
		Token:      res.Token,
		RememberMe: remember,
	}
	c.persist(creds)
	if !remember {
		creds.Password = ""
	}
	c.set(func(s *State) {
		s.Credentials = creds
		s.Auth = AuthState{Kind: AuthAuthenticated}
	})

	c.logger.Info("logged in", "server", serverURL, "user", username, "remember", remember)
	c.record(serverURL, username, false, models.OutcomeSuccess, "")
	return c.State().Auth
}

// Logout ends the session. The remote call is best effort; local
// credentials are always cleared.
func (c *Controller) Logout(ctx context.Context) AuthState {
	c.setAuth(AuthLoading, "")

	if tok := c.Token(); tok != "" {
		if err := c.api(c.ServerURL(), c.tokens()).Logout(ctx); err != nil {
			c.logger.Warn("remote logout failed", "err", err)
		}
	}

	c.reset()
	return c.State().Auth
}

// SaveServerURL normalizes and persists input. Empty input clears the saved URL.
func (c *Controller) SaveServerURL(input string) (bool, error) {
	if strings.TrimSpace(input) == "" {
		ok := c.store.Remove(secrets.KeyServerURL)
		c.set(func(s *State) { s.Credentials.ServerURL = "" })
		return ok, nil
	}

	normalized, err := c.normalizer.Normalize(input)
	if err != nil {
		return false, fmt.Errorf("%w: %w", shared.ErrInvalidURL, err)
	}
	if !c.store.Put(secrets.KeyServerURL, normalized) {
		return false, fmt.Errorf("%w: could not save server url", shared.ErrStorage)
	}
	c.set(func(s *State) { s.Credentials.ServerURL = normalized })
	return true, nil
}

// ClearCredentials removes saved credentials without touching the auth state.
func (c *Controller) ClearCredentials() {
	c.forget()
	c.set(func(s *State) { s.Credentials = Credentials{ServerURL: s.Credentials.ServerURL} })
}

// ClearError moves an [AuthError] state to [AuthNotAuthenticated].
func (c *Controller) ClearError() {
	c.set(func(s *State) {
		if s.Auth.Kind == AuthError {
			s.Auth = AuthState{Kind: AuthNotAuthenticated}
		}
	})
}
