package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/shared"
)

// LoginAttemptRepository implements [models.Repository] for [models.LoginAttempt].
// Attempts are append-only.
type LoginAttemptRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewLoginAttemptRepository creates a new [LoginAttemptRepository] with the given database connection
func NewLoginAttemptRepository(db *sql.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db, now: time.Now}
}

// Create inserts a new attempt with a generated ID.
func (r *LoginAttemptRepository) Create(a *models.LoginAttempt) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO login_attempts (id, server_url, username, automatic, outcome, message, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, id, a.ServerURL(), a.Username(), a.Automatic(), a.Outcome(), a.Message(), a.CreatedAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert login attempt: %w", err)
	}

	a.SetID(id)
	return nil
}

// Get retrieves an attempt by ID.
func (r *LoginAttemptRepository) Get(id string) (*models.LoginAttempt, error) {
	row := r.db.QueryRow(`
		SELECT id, server_url, username, automatic, outcome, message, attempted_at
		FROM login_attempts WHERE id = ?
	`, id)
	a, err := scanAttempt(row)
	if err != nil {
		return nil, notFound(err, "login attempt", id)
	}
	return a, nil
}

// Update is not supported; attempts are immutable.
func (r *LoginAttemptRepository) Update(*models.LoginAttempt) error {
	return fmt.Errorf("%w: login attempts are immutable", shared.ErrNotImplemented)
}

// Delete removes an attempt by ID.
func (r *LoginAttemptRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM login_attempts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete login attempt: %w", err)
	}
	return affected(result, "login attempt", id)
}

// List returns attempts, newest first.
//
// Supported criteria: "server_url" (string), "outcome" (string) and "limit" (int).
func (r *LoginAttemptRepository) List(criteria map[string]any) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, server_url, username, automatic, outcome, message, attempted_at
		FROM login_attempts WHERE 1 = 1
	`
	args := []any{}

	if server, ok := criteria["server_url"].(string); ok && server != "" {
		query += " AND server_url = ?"
		args = append(args, server)
	}

	if outcome, ok := criteria["outcome"].(string); ok && outcome != "" {
		query += " AND outcome = ?"
		args = append(args, outcome)
	}

	query += " ORDER BY attempted_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.LoginAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return attempts, nil
}

// Cleanup removes attempts older than days days.
func (r *LoginAttemptRepository) Cleanup(days int) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM login_attempts WHERE attempted_at < ?`, cutoff(r.now(), days))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up login attempts: %w", err)
	}
	return result.RowsAffected()
}

func scanAttempt(s scanner) (*models.LoginAttempt, error) {
	var (
		id, serverURL, username, outcome, message string
		automatic                                 bool
		attemptedAt                               time.Time
	)
	if err := s.Scan(&id, &serverURL, &username, &automatic, &outcome, &message, &attemptedAt); err != nil {
		return nil, err
	}
	return models.RestoreLoginAttempt(id, serverURL, username, automatic, outcome, message, attemptedAt), nil
}
