package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/olx/internal/shared"
)

var networkErrors = []error{
	shared.ErrNotConnected,
	shared.ErrPoorQuality,
	shared.ErrHostUnresolved,
	shared.ErrTLS,
	shared.ErrNetwork,
}

// Describe maps err to the message and priority it is queued with.
func Describe(err error) (string, Priority) {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case errors.Is(err, shared.ErrAuthFailed):
		return "invalid username or password", Critical
	case errors.Is(err, shared.ErrConnectionRefused):
		return "unable to connect to server", High
	case errors.Is(err, shared.ErrTimeout):
		return "connection timed out, please retry", Medium
	case isNetwork(err):
		return fmt.Sprintf("network error: %v", err), High
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return "failed to parse server response", Low
	default:
		return fmt.Sprintf("operation failed: %v", err), Medium
	}
}

func isNetwork(err error) bool {
	for _, target := range networkErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// AddError queues err under its mapped message and priority, keyed by its type.
func (m *Manager) AddError(err error, retry func()) bool {
	if err == nil {
		return false
	}
	message, p := Describe(err)
	return m.Add(message, p, retry, fmt.Sprintf("%T", err))
}

// ShowError is [Manager.AddError] followed by [Manager.Drain].
func (m *Manager) ShowError(ctx context.Context, n Notifier, err error, retry func()) error {
	m.AddError(err, retry)
	return m.Drain(ctx, n)
}
