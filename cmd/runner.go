package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/olx/internal/auth"
	"github.com/desertthunder/olx/internal/connectivity"
	"github.com/desertthunder/olx/internal/notify"
	"github.com/desertthunder/olx/internal/pipeline"
	"github.com/desertthunder/olx/internal/repositories"
	"github.com/desertthunder/olx/internal/secrets"
	"github.com/desertthunder/olx/internal/services"
	"github.com/desertthunder/olx/internal/shared"
	"github.com/desertthunder/olx/internal/urls"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The secret store, database, connectivity monitor and auth controller are
// built on first use so that commands such as `setup config` work before any
// of them exist.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	input      io.Reader
	output     io.Writer
	open       func(url string) error

	mu         sync.Mutex
	store      *secrets.Store
	db         *sql.DB
	monitor    *connectivity.Monitor
	errors     *notify.Manager
	controller *auth.Controller
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Input      io.Reader
	Output     io.Writer
	Open       func(url string) error

	// Store, DB and Monitor replace the ones built from Config, mostly for tests.
	Store   *secrets.Store
	DB      *sql.DB
	Monitor *connectivity.Monitor
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Open == nil {
		opts.Open = shared.OpenURL
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		input:      opts.Input,
		output:     opts.Output,
		open:       opts.Open,
		store:      opts.Store,
		db:         opts.DB,
		monitor:    opts.Monitor,
		errors:     newErrorQueue(opts.Config.Notify, opts.Logger),
	}
}

func newErrorQueue(cfg shared.NotifyConfig, logger *log.Logger) *notify.Manager {
	return notify.NewManager(
		notify.WithPacing(cfg.MinInterval.Duration, cfg.SameInterval.Duration),
		notify.WithLogger(shared.WithLogger(logger, "component", "notify")),
	)
}

// Before loads the config file named by --config and applies --log-level.
// A missing file falls back to the embedded defaults.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	level := r.config.Log.Level
	if l := cmd.String("log-level"); l != "" {
		level = l
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	r.errors = newErrorQueue(r.config.Notify, r.logger)
	return ctx, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serverCommand, authCommand, fsCommand, storageCommand,
		historyCommand, diagnoseCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
// Call it before anything logs through the lazily built dependencies.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.errors = newErrorQueue(r.config.Notify, l)
}

// Close releases the database and stops the connectivity monitor. It is safe to call twice.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.monitor != nil {
		r.monitor.Unregister()
	}
	if r.db == nil {
		return nil
	}
	db := r.db
	r.db = nil
	return db.Close()
}

func (r *Runner) normalizer() *urls.Normalizer {
	return urls.New(
		urls.WithForceHTTP(r.config.Server.ForceHTTP),
		urls.WithHostRewrites(r.config.HostRewriteMap()),
	)
}

func (r *Runner) secretStore() (*secrets.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		return r.store, nil
	}

	cfg := r.config.Secrets
	key, err := secrets.LoadKeyMaterial(cfg.KeyFile, cfg.PassphraseEnv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	store, err := secrets.Open(cfg.Path, key, r.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	r.store = store
	return store, nil
}

// database opens the configured SQLite file and applies pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		return r.db, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *Runner) history() (*repositories.PlayHistoryRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewPlayHistoryRepository(db), nil
}

// network returns the connectivity monitor, seeded with one synchronous probe
// so the first request is not gated on a disconnected default.
func (r *Runner) network(ctx context.Context) *connectivity.Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.monitor != nil {
		return r.monitor
	}

	cfg := r.config.Network
	m := connectivity.NewMonitor(shared.WithLogger(r.logger, "component", "connectivity"))
	if cfg.ConnectivityCheck {
		p := connectivity.NewProber(cfg.ProbeAddress, cfg.ProbeInterval.Duration)
		m.Handle(p.Check(ctx))
		m.Watch(context.WithoutCancel(ctx), p)
	} else {
		m.Handle(connectivity.AssumeOnline)
		m.Watch(context.WithoutCancel(ctx), connectivity.StaticSource{Event: connectivity.AssumeOnline})
	}
	r.monitor = m
	return m
}

func (r *Runner) pipelineOptions(gate pipeline.Gate, tokens oauth2.TokenSource) pipeline.Options {
	opts := pipeline.OptionsFromConfig(r.config.Network)
	opts.Gate = gate
	opts.Tokens = tokens
	opts.Logger = shared.WithLogger(r.logger, "component", "pipeline")
	return opts
}

// authController builds the credential controller on first use. Login
// attempts are recorded when the database is available.
func (r *Runner) authController(ctx context.Context) (*auth.Controller, error) {
	store, err := r.secretStore()
	if err != nil {
		return nil, err
	}
	monitor := r.network(ctx)

	var attempts auth.Recorder
	if db, err := r.database(); err != nil {
		r.logger.Warn("login attempts will not be recorded", "err", err)
	} else {
		attempts = repositories.NewLoginAttemptRepository(db)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.controller != nil {
		return r.controller, nil
	}

	defaultURL := r.config.Server.URL
	if defaultURL == "" {
		defaultURL = r.config.Server.DefaultURL
	}

	r.controller = auth.NewController(auth.Options{
		Store:   store,
		Network: monitor,
		Errors:  r.errors,
		API: func(baseURL string, tokens oauth2.TokenSource) auth.API {
			return services.NewAPIService(baseURL, pipeline.NewClient(r.pipelineOptions(monitor, tokens)))
		},
		Normalizer: r.normalizer(),
		Attempts:   attempts,
		DefaultURL: defaultURL,
		Logger:     shared.WithLogger(r.logger, "component", "auth"),
	})
	return r.controller, nil
}

// session returns an API service for the signed in user. A saved token is
// validated first and remembered credentials are tried when none is saved.
func (r *Runner) session(ctx context.Context) (*services.APIService, error) {
	c, err := r.authController(ctx)
	if err != nil {
		return nil, err
	}

	if c.Start(ctx).Kind != auth.AuthAuthenticated {
		if s := c.AttemptAutoLogin(ctx); s.Kind != auth.AutoSuccess {
			r.logger.Debug("auto login did not sign in", "state", s)
			return nil, fmt.Errorf("%w: run `olx auth login` first", shared.ErrNotAuthenticated)
		}
	}
	return r.api(ctx, c), nil
}

// api builds a service for c's server authenticated with c's token.
func (r *Runner) api(ctx context.Context, c *auth.Controller) *services.APIService {
	opts := r.pipelineOptions(r.network(ctx), pipeline.BearerToken(c.Token))
	return services.NewAPIService(c.ServerURL(), pipeline.NewClient(opts))
}

// reportErrors logs queued notifications once a command has finished.
// The TUI shows them in its snackbar instead.
func (r *Runner) reportErrors() {
	for _, it := range r.errors.Items() {
		if !it.Shown {
			r.logger.Error(it.Message, "priority", it.Priority)
		}
	}
	r.errors.Clear()
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
