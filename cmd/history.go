package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/olx/internal/formatter"
	"github.com/desertthunder/olx/internal/repositories"
	"github.com/desertthunder/olx/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints recently opened media, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	repo, err := r.history()
	if err != nil {
		return err
	}

	entries, err := repo.List(map[string]any{
		"limit":      cmd.Int("limit"),
		"query":      cmd.String("query"),
		"server_url": cmd.String("server"),
	})
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	out, err := formatter.RenderHistory(format, entries)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// HistoryRemove deletes one entry by ID.
func (r *Runner) HistoryRemove(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: id", shared.ErrMissingArgument)
	}
	repo, err := r.history()
	if err != nil {
		return err
	}

	if err := repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return r.writePlain("✓ Deleted %s\n", id)
}

// HistoryClear deletes every entry.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.history()
	if err != nil {
		return err
	}

	n, err := repo.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return r.writePlain("✓ Deleted %d entries\n", n)
}

// HistoryCleanup deletes play history and login attempts older than --days.
func (r *Runner) HistoryCleanup(ctx context.Context, cmd *cli.Command) error {
	days := cmd.Int("days")
	if days <= 0 {
		return fmt.Errorf("%w: days must be positive", shared.ErrInvalidArgument)
	}
	db, err := r.database()
	if err != nil {
		return err
	}

	plays, err := repositories.NewPlayHistoryRepository(db).Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to clean up history: %w", err)
	}
	attempts, err := repositories.NewLoginAttemptRepository(db).Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to clean up login attempts: %w", err)
	}

	r.logger.Info("cleanup complete", "days", days, "history", plays, "attempts", attempts)
	return r.writePlain("✓ Deleted %d history entries and %d login attempts older than %d days\n", plays, attempts, days)
}
