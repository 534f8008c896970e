package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/services"
	"github.com/desertthunder/olx/internal/shared"
	"github.com/desertthunder/olx/internal/ui"
	"github.com/urfave/cli/v3"
)

var _ ui.Browser = browser{}

// browser is a [ui.Browser] that always targets the controller's current
// server with its current token, so it survives logout and a server change.
type browser struct {
	r *Runner
}

func (b browser) service(ctx context.Context) (*services.APIService, error) {
	c, err := b.r.authController(ctx)
	if err != nil {
		return nil, err
	}
	return b.r.api(ctx, c), nil
}

func (b browser) List(ctx context.Context, req models.ListRequest) (*models.ListResult, error) {
	s, err := b.service(ctx)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, req)
}

func (b browser) Stat(ctx context.Context, req models.GetRequest) (*models.Object, error) {
	s, err := b.service(ctx)
	if err != nil {
		return nil, err
	}
	return s.Stat(ctx, req)
}

func (b browser) BaseURL() string {
	s, err := b.service(context.Background())
	if err != nil {
		return ""
	}
	return s.BaseURL()
}

// TUI launches the interactive file browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	c, err := r.authController(ctx)
	if err != nil {
		return err
	}
	c.Start(ctx)

	deps := ui.Deps{
		Browser:  browser{r: r},
		Auth:     c,
		Network:  r.network(ctx),
		Errors:   r.errors,
		Snackbar: ui.NewSnackbar(),
		Root:     cmd.String("root"),
		Logger:   shared.WithLogger(fileLogger, "component", "ui"),
		Open:     r.open,
	}
	if repo, err := r.history(); err != nil {
		fileLogger.Warn("play history unavailable", "err", err)
	} else {
		deps.History = repo
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, deps)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
