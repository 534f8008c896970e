package auth

import "github.com/desertthunder/olx/internal/shared"

// AuthKind enumerates the authentication states.
type AuthKind int

const (
	AuthInitial AuthKind = iota
	AuthLoading
	AuthAuthenticated
	AuthNotAuthenticated
	AuthError
)

func (k AuthKind) String() string {
	switch k {
	case AuthInitial:
		return "initial"
	case AuthLoading:
		return "loading"
	case AuthAuthenticated:
		return "authenticated"
	case AuthNotAuthenticated:
		return "not_authenticated"
	case AuthError:
		return "error"
	default:
		return "unknown"
	}
}

// AuthState is the current authentication state. Message is set for [AuthError].
type AuthState struct {
	Kind    AuthKind `json:"kind"`
	Message string   `json:"message,omitempty"`
}

func (s AuthState) String() string {
	if s.Message != "" {
		return s.Kind.String() + ": " + s.Message
	}
	return s.Kind.String()
}

// AutoLoginKind enumerates the startup auto-login states.
type AutoLoginKind int

const (
	AutoIdle AutoLoginKind = iota
	AutoAttempting
	AutoSuccess
	AutoNoCredentials
	AutoInvalidCredentials
	AutoCancelled
	AutoFailed
)

func (k AutoLoginKind) String() string {
	switch k {
	case AutoIdle:
		return "idle"
	case AutoAttempting:
		return "attempting"
	case AutoSuccess:
		return "success"
	case AutoNoCredentials:
		return "no_credentials"
	case AutoInvalidCredentials:
		return "invalid_credentials"
	case AutoCancelled:
		return "cancelled"
	case AutoFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AutoLoginState is the auto-login track. Message is set for [AutoFailed].
type AutoLoginState struct {
	Kind    AutoLoginKind `json:"kind"`
	Message string        `json:"message,omitempty"`
}

func (s AutoLoginState) String() string {
	if s.Message != "" {
		return s.Kind.String() + ": " + s.Message
	}
	return s.Kind.String()
}

// Credentials is the cached view of what the controller knows about the session.
type Credentials struct {
	ServerURL  string `json:"server_url"`
	Username   string `json:"username"`
	Password   string `json:"password,omitempty"`
	Token      string `json:"token,omitempty"`
	RememberMe bool   `json:"remember_me"`
}

// Redacted masks the password and token for display.
func (c Credentials) Redacted() Credentials {
	c.Password = shared.Redact(c.Password)
	c.Token = shared.Redact(c.Token)
	return c
}

// State is one immutable snapshot of the controller.
type State struct {
	Auth        AuthState      `json:"auth"`
	AutoLogin   AutoLoginState `json:"auto_login"`
	Credentials Credentials    `json:"credentials"`
}
