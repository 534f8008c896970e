package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/olx/internal/auth"
	"github.com/desertthunder/olx/internal/diagnostics"
	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/repositories"
	"github.com/desertthunder/olx/internal/shared"
	"github.com/desertthunder/olx/internal/urls"
	"github.com/urfave/cli/v3"
)

// ServerSet normalizes and saves the server address.
func (r *Runner) ServerSet(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("url")
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("%w: server url", shared.ErrMissingArgument)
	}

	c, err := r.authController(ctx)
	if err != nil {
		return err
	}

	if _, err := c.SaveServerURL(input); err != nil {
		if hints := urls.Suggestions(input); len(hints) > 0 {
			return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(hints, ", "))
		}
		return err
	}

	saved := c.ServerURL()
	r.logger.Info("server saved", "url", saved)
	r.writePlain("✓ Server set to %s\n", saved)

	if cmd.Bool("check") {
		return r.checkServer(ctx, saved, false, false)
	}
	return nil
}

// ServerShow prints the saved (or default) server address.
func (r *Runner) ServerShow(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authController(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", c.ServerURL())
}

// ServerClear forgets the saved server address.
func (r *Runner) ServerClear(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authController(ctx)
	if err != nil {
		return err
	}
	if _, err := c.SaveServerURL(""); err != nil {
		return err
	}
	return r.writePlain("✓ Server cleared, using %s\n", c.ServerURL())
}

// ServerCheck tests whether the given (or saved) server is reachable.
func (r *Runner) ServerCheck(ctx context.Context, cmd *cli.Command) error {
	target := cmd.StringArg("url")
	if target == "" {
		c, err := r.authController(ctx)
		if err != nil {
			return err
		}
		target = c.ServerURL()
	}
	return r.checkServer(ctx, target, cmd.Bool("json"), cmd.Bool("pretty"))
}

func (r *Runner) checkServer(ctx context.Context, target string, asJSON, pretty bool) error {
	tester := diagnostics.NewTester(r.pipelineOptions(nil, nil), r.normalizer())
	res := tester.Test(ctx, target)
	r.logger.Debug("server test", "url", target, "outcome", res.Outcome, "latency", res.Latency)

	if asJSON {
		if err := r.writeJSON(res, pretty); err != nil {
			return err
		}
	} else if res.Reachable() {
		r.writePlain("✓ %s reachable (%s, %s)\n", target, res, res.Latency.Round(time.Millisecond))
	} else {
		r.writePlain("✗ %s: %s\n", target, res)
	}

	if !res.Reachable() {
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, res)
	}
	return nil
}

// AuthLogin signs in to the saved server.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authController(ctx)
	if err != nil {
		return err
	}

	username := cmd.String("username")
	password := cmd.String("password")

	prompt := bufio.NewReader(r.input)
	if username == "" {
		if username, err = r.ask(prompt, "Username: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = r.ask(prompt, "Password: "); err != nil {
			return err
		}
	}

	r.logger.Info("signing in", "server", c.ServerURL(), "user", username)
	state := c.Login(ctx, username, password, cmd.Bool("remember"))
	if state.Kind != auth.AuthAuthenticated {
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, state.Message)
	}

	return r.writePlain("✓ Signed in to %s as %s\n", c.ServerURL(), username)
}

func (r *Runner) ask(in *bufio.Reader, label string) (string, error) {
	r.writePlain("%s", label)
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" && err != nil {
		return "", fmt.Errorf("%w: %s", shared.ErrMissingArgument, strings.TrimSuffix(strings.ToLower(label), ": "))
	}
	return line, nil
}

// AuthLogout signs out and removes the saved session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authController(ctx)
	if err != nil {
		return err
	}

	c.Start(ctx)
	c.Logout(ctx)
	r.logger.Info("signed out", "server", c.ServerURL())
	return r.writePlain("✓ Signed out\n")
}

type authStatus struct {
	Server      string                 `json:"server"`
	State       string                 `json:"state"`
	Credentials auth.Credentials       `json:"credentials"`
	User        *models.User           `json:"user,omitempty"`
	Attempts    []*models.LoginAttempt `json:"attempts,omitempty"`
}

// AuthStatus validates the saved session and shows the current account.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authController(ctx)
	if err != nil {
		return err
	}

	state := c.Start(ctx)
	status := authStatus{
		Server:      c.ServerURL(),
		State:       state.String(),
		Credentials: c.Credentials(),
	}

	if state.Kind == auth.AuthAuthenticated {
		if user, err := r.api(ctx, c).Me(ctx); err != nil {
			r.logger.Warn("failed to fetch account", "err", err)
		} else {
			status.User = user
		}
	}

	if n := cmd.Int("attempts"); n > 0 {
		db, err := r.database()
		if err != nil {
			return err
		}
		attempts, err := repositories.NewLoginAttemptRepository(db).List(map[string]any{"limit": n})
		if err != nil {
			return err
		}
		status.Attempts = attempts
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Authentication")
	r.writePlain("Server:   %s\n", status.Server)
	r.writePlain("State:    %s\n", status.State)
	if status.User != nil {
		r.writePlain("User:     %s (base path %s)\n", status.User.Username, status.User.BasePath)
	} else if status.Credentials.Username != "" {
		r.writePlain("User:     %s\n", status.Credentials.Username)
	}
	r.writePlain("Remember: %v\n", status.Credentials.RememberMe)

	if len(status.Attempts) > 0 {
		r.writePlainln("Recent login attempts:")
		for _, a := range status.Attempts {
			kind := "manual"
			if a.Automatic() {
				kind = "auto"
			}
			r.writePlain("  %s  %-6s %-9s %s %s\n",
				a.CreatedAt().Local().Format("2006-01-02 15:04"), kind, a.Outcome(), a.Username(), a.Message())
		}
	}
	return nil
}

// AuthAuto signs in with remembered credentials.
func (r *Runner) AuthAuto(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authController(ctx)
	if err != nil {
		return err
	}

	state := c.AttemptAutoLogin(ctx)
	switch state.Kind {
	case auth.AutoSuccess:
		return r.writePlain("✓ Signed in to %s as %s\n", c.ServerURL(), c.State().Credentials.Username)
	case auth.AutoNoCredentials:
		return fmt.Errorf("%w: sign in with --remember first", shared.ErrNoCredentials)
	default:
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, state)
	}
}

// AuthClear removes saved credentials but keeps the server address.
func (r *Runner) AuthClear(ctx context.Context, cmd *cli.Command) error {
	c, err := r.authController(ctx)
	if err != nil {
		return err
	}
	c.ClearCredentials()
	return r.writePlain("✓ Saved credentials removed\n")
}
