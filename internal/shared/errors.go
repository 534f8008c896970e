package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Validation errors
	ErrValidation      = fmt.Errorf("validation failed")
	ErrInvalidURL      = fmt.Errorf("invalid server address")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrNoCredentials    = fmt.Errorf("no saved credentials")

	// Network errors
	ErrNotConnected      = fmt.Errorf("network not connected")
	ErrPoorQuality       = fmt.Errorf("network quality too poor")
	ErrTimeout           = fmt.Errorf("operation timed out")
	ErrConnectionRefused = fmt.Errorf("connection refused")
	ErrHostUnresolved    = fmt.Errorf("host could not be resolved")
	ErrTLS               = fmt.Errorf("TLS handshake failed")
	ErrNetwork           = fmt.Errorf("network request failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServer             = fmt.Errorf("server error")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")

	// Storage errors
	ErrStorage = fmt.Errorf("storage failure")
)
