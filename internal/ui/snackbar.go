package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/olx/internal/notify"
)

var _ notify.Notifier = (*Snackbar)(nil)

type snackRequest struct {
	message string
	action  string
	reply   chan notify.Outcome
}

// Snackbar is the [notify.Notifier] shown at the bottom of the TUI.
//
// Display hands the message to the running program and blocks until the
// user dismisses it (enter) or picks the action (r).
type Snackbar struct {
	requests chan snackRequest
}

func NewSnackbar() *Snackbar {
	return &Snackbar{requests: make(chan snackRequest)}
}

func (s *Snackbar) Display(ctx context.Context, message, actionLabel string) (notify.Outcome, error) {
	req := snackRequest{message: message, action: actionLabel, reply: make(chan notify.Outcome, 1)}

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return notify.Dismissed, ctx.Err()
	}

	select {
	case out := <-req.reply:
		return out, nil
	case <-ctx.Done():
		return notify.Dismissed, ctx.Err()
	}
}

// wait delivers the next display request to the program.
func (s *Snackbar) wait() tea.Cmd {
	return func() tea.Msg {
		return snackRequestedMsg(<-s.requests)
	}
}
