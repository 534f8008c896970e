package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/olx/internal/diagnostics"
	"github.com/desertthunder/olx/internal/services"
	"github.com/desertthunder/olx/internal/shared"
	"github.com/urfave/cli/v3"
)

func apiPath(cmd *cli.Command) (string, error) {
	path := strings.TrimSpace(cmd.StringArg("path"))
	if path == "" {
		return "", fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path, nil
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}

	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// APIGet makes a direct GET request to the saved server with the session token.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path, err := apiPath(cmd)
	if err != nil {
		return err
	}
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("GET request", "path", path)

	resp, err := api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, cmd.Bool("pretty") && !cmd.Bool("json"))
}

// APIPost makes a direct POST request to the saved server with the session token.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	path, err := apiPath(cmd)
	if err != nil {
		return err
	}
	data := cmd.String("data")
	if data == "" {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidArgument)
	}
	api, err := r.session(ctx)
	if err != nil {
		return err
	}

	r.logger.Info("POST request", "path", path)

	resp, err := api.Post(ctx, path, []byte(data))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, true)
}

// Diagnose reports the local network state, tests the server and prints suggestions.
func (r *Runner) Diagnose(ctx context.Context, cmd *cli.Command) error {
	target := cmd.StringArg("url")
	if target == "" {
		c, err := r.authController(ctx)
		if err != nil {
			return err
		}
		target = c.ServerURL()
	}

	tester := diagnostics.NewTester(r.pipelineOptions(nil, nil), r.normalizer())
	report := tester.Diagnose(ctx, r.network(ctx).Snapshot(), target)
	suggestions := diagnostics.Suggestions(report)

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			diagnostics.Report
			Suggestions []string `json:"suggestions"`
		}{report, suggestions}, cmd.Bool("pretty"))
	}

	n := report.Network
	r.writePlainHeader("Diagnostics")
	if n.Connected {
		r.writePlain("Network:  %s, %s quality\n", n.Type, n.Quality)
		r.writePlain("          %s\n", n.Quality.Recommendation())
	} else {
		r.writePlain("Network:  offline\n")
	}
	if n.Metered {
		r.writePlain("Metered:  yes\n")
	}
	r.writePlain("Server:   %s\n", report.ServerURL)
	if report.FormattedURL != "" && report.FormattedURL != report.ServerURL {
		r.writePlain("          (as %s)\n", report.FormattedURL)
	}
	r.writePlain("Result:   %s\n", report.Result)
	if report.Result.Reachable() {
		r.writePlain("Latency:  %s\n", report.Result.Latency)
	}

	if len(suggestions) > 0 {
		r.writePlainln("Suggestions:")
		for _, s := range suggestions {
			r.writePlain("  • %s\n", s)
		}
	}
	return nil
}
