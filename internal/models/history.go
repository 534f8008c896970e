package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/olx/internal/shared"
)

// PlayHistory records a media file opened from a server. One row exists per
// (server, path); reopening bumps the play count.
type PlayHistory struct {
	id              string
	serverURL       string
	filePath        string
	fileName        string
	fileSize        int64
	isVideo         bool
	duration        int64 // seconds
	currentPosition int64 // seconds
	playCount       int
	thumbURL        string
	lastPlayedAt    time.Time
	createdAt       time.Time
}

// NewPlayHistory creates an unsaved entry for the file at path on serverURL.
func NewPlayHistory(serverURL, path, name string, size int64, isVideo bool) *PlayHistory {
	now := time.Now().UTC()
	return &PlayHistory{
		serverURL:    serverURL,
		filePath:     path,
		fileName:     name,
		fileSize:     size,
		isVideo:      isVideo,
		playCount:    1,
		lastPlayedAt: now,
		createdAt:    now,
	}
}

// PlayHistoryFromObject builds an entry from a listing entry.
func PlayHistoryFromObject(serverURL string, obj Object) *PlayHistory {
	path := obj.Path
	if path == "" {
		path = shared.JoinRemotePath(obj.Parent, obj.Name)
	}
	h := NewPlayHistory(serverURL, path, obj.Name, obj.Size, obj.Type == TypeVideo || shared.IsVideo(obj.Name))
	h.thumbURL = obj.Thumb
	return h
}

// RestorePlayHistory rebuilds a persisted entry.
func RestorePlayHistory(id, serverURL, path, name string, size int64, isVideo bool, duration, position int64, playCount int, thumb string, lastPlayed, created time.Time) *PlayHistory {
	return &PlayHistory{
		id:              id,
		serverURL:       serverURL,
		filePath:        path,
		fileName:        name,
		fileSize:        size,
		isVideo:         isVideo,
		duration:        duration,
		currentPosition: position,
		playCount:       playCount,
		thumbURL:        thumb,
		lastPlayedAt:    lastPlayed,
		createdAt:       created,
	}
}

func (h *PlayHistory) ID() string              { return h.id }
func (h *PlayHistory) ServerURL() string       { return h.serverURL }
func (h *PlayHistory) FilePath() string        { return h.filePath }
func (h *PlayHistory) FileName() string        { return h.fileName }
func (h *PlayHistory) FileSize() int64         { return h.fileSize }
func (h *PlayHistory) IsVideo() bool           { return h.isVideo }
func (h *PlayHistory) Duration() int64         { return h.duration }
func (h *PlayHistory) CurrentPosition() int64  { return h.currentPosition }
func (h *PlayHistory) PlayCount() int          { return h.playCount }
func (h *PlayHistory) ThumbURL() string        { return h.thumbURL }
func (h *PlayHistory) LastPlayedAt() time.Time { return h.lastPlayedAt }
func (h *PlayHistory) CreatedAt() time.Time    { return h.createdAt }

// UpdatedAt is the last play time.
func (h *PlayHistory) UpdatedAt() time.Time { return h.lastPlayedAt }

func (h *PlayHistory) SetID(id string)                  { h.id = id }
func (h *PlayHistory) SetDuration(seconds int64)        { h.duration = seconds }
func (h *PlayHistory) SetCurrentPosition(seconds int64) { h.currentPosition = seconds }
func (h *PlayHistory) SetLastPlayedAt(t time.Time)      { h.lastPlayedAt = t }
func (h *PlayHistory) SetThumbURL(u string)             { h.thumbURL = u }

// Progress returns the fraction of the media played, 0 when the duration is unknown.
func (h *PlayHistory) Progress() float64 {
	if h.duration <= 0 {
		return 0
	}
	return min(float64(h.currentPosition)/float64(h.duration), 1)
}

// Validate checks required fields.
func (h *PlayHistory) Validate() error {
	switch {
	case strings.TrimSpace(h.serverURL) == "":
		return fmt.Errorf("%w: server url is required", shared.ErrValidation)
	case strings.TrimSpace(h.filePath) == "":
		return fmt.Errorf("%w: file path is required", shared.ErrValidation)
	case strings.TrimSpace(h.fileName) == "":
		return fmt.Errorf("%w: file name is required", shared.ErrValidation)
	case h.currentPosition < 0 || h.duration < 0:
		return fmt.Errorf("%w: negative position or duration", shared.ErrValidation)
	}
	return nil
}

func (h *PlayHistory) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID              string    `json:"id"`
		ServerURL       string    `json:"server_url"`
		FilePath        string    `json:"file_path"`
		FileName        string    `json:"file_name"`
		FileSize        int64     `json:"file_size"`
		IsVideo         bool      `json:"is_video"`
		Duration        int64     `json:"duration"`
		CurrentPosition int64     `json:"current_position"`
		PlayCount       int       `json:"play_count"`
		ThumbURL        string    `json:"thumb_url,omitempty"`
		LastPlayedAt    time.Time `json:"last_played_at"`
		CreatedAt       time.Time `json:"created_at"`
	}{h.id, h.serverURL, h.filePath, h.fileName, h.fileSize, h.isVideo, h.duration,
		h.currentPosition, h.playCount, h.thumbURL, h.lastPlayedAt, h.createdAt})
}

// Login attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped"
)

// LoginAttempt is an audit record of a manual or automatic login.
type LoginAttempt struct {
	id          string
	serverURL   string
	username    string
	automatic   bool
	outcome     string
	message     string
	attemptedAt time.Time
}

// NewLoginAttempt creates an unsaved audit record.
func NewLoginAttempt(serverURL, username string, automatic bool, outcome, message string) *LoginAttempt {
	return &LoginAttempt{
		serverURL:   serverURL,
		username:    username,
		automatic:   automatic,
		outcome:     outcome,
		message:     message,
		attemptedAt: time.Now().UTC(),
	}
}

// RestoreLoginAttempt rebuilds a persisted record.
func RestoreLoginAttempt(id, serverURL, username string, automatic bool, outcome, message string, at time.Time) *LoginAttempt {
	return &LoginAttempt{id, serverURL, username, automatic, outcome, message, at}
}

func (a *LoginAttempt) ID() string           { return a.id }
func (a *LoginAttempt) ServerURL() string    { return a.serverURL }
func (a *LoginAttempt) Username() string     { return a.username }
func (a *LoginAttempt) Automatic() bool      { return a.automatic }
func (a *LoginAttempt) Outcome() string      { return a.outcome }
func (a *LoginAttempt) Message() string      { return a.message }
func (a *LoginAttempt) CreatedAt() time.Time { return a.attemptedAt }
func (a *LoginAttempt) UpdatedAt() time.Time { return a.attemptedAt }
func (a *LoginAttempt) SetID(id string)      { a.id = id }

func (a *LoginAttempt) Validate() error {
	switch a.outcome {
	case OutcomeSuccess, OutcomeFailed, OutcomeCancelled, OutcomeSkipped:
	default:
		return fmt.Errorf("%w: unknown outcome %q", shared.ErrValidation, a.outcome)
	}
	if a.serverURL == "" {
		return fmt.Errorf("%w: server url is required", shared.ErrValidation)
	}
	return nil
}

func (a *LoginAttempt) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          string    `json:"id"`
		ServerURL   string    `json:"server_url"`
		Username    string    `json:"username"`
		Automatic   bool      `json:"automatic"`
		Outcome     string    `json:"outcome"`
		Message     string    `json:"message,omitempty"`
		AttemptedAt time.Time `json:"attempted_at"`
	}{a.id, a.serverURL, a.username, a.automatic, a.outcome, a.message, a.attemptedAt})
}
