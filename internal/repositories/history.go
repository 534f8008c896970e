package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/olx/internal/models"
	"github.com/desertthunder/olx/internal/shared"
)

const historyColumns = `id, server_url, file_path, file_name, file_size, is_video, duration,
	current_position, play_count, thumb_url, last_played_at, created_at`

// PlayHistoryRepository implements [models.Repository] for [models.PlayHistory].
type PlayHistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPlayHistoryRepository creates a new [PlayHistoryRepository] with the given database connection
func NewPlayHistoryRepository(db *sql.DB) *PlayHistoryRepository {
	return &PlayHistoryRepository{db: db, now: time.Now}
}

// Create inserts a new entry with a generated ID.
func (r *PlayHistoryRepository) Create(h *models.PlayHistory) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	query := `INSERT INTO play_history (` + historyColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.Exec(query, id, h.ServerURL(), h.FilePath(), h.FileName(), h.FileSize(), h.IsVideo(),
		h.Duration(), h.CurrentPosition(), h.PlayCount(), h.ThumbURL(), h.LastPlayedAt().UTC(), h.CreatedAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert play history: %w", err)
	}

	h.SetID(id)
	return nil
}

// Record stores a play of h. A file already played on the same server keeps
// its ID and position, and its play count is incremented.
func (r *PlayHistoryRepository) Record(h *models.PlayHistory) (*models.PlayHistory, error) {
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO play_history (` + historyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (server_url, file_path) DO UPDATE SET
			file_name = excluded.file_name,
			file_size = excluded.file_size,
			is_video = excluded.is_video,
			thumb_url = CASE WHEN excluded.thumb_url = '' THEN thumb_url ELSE excluded.thumb_url END,
			play_count = play_count + 1,
			last_played_at = excluded.last_played_at
	`

	now := r.now().UTC()
	_, err := r.db.Exec(query, shared.GenerateID(), h.ServerURL(), h.FilePath(), h.FileName(), h.FileSize(),
		h.IsVideo(), h.Duration(), h.CurrentPosition(), h.ThumbURL(), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record play: %w", err)
	}

	return r.GetByPath(h.ServerURL(), h.FilePath())
}

// Get retrieves an entry by ID.
func (r *PlayHistoryRepository) Get(id string) (*models.PlayHistory, error) {
	row := r.db.QueryRow(`SELECT `+historyColumns+` FROM play_history WHERE id = ?`, id)
	h, err := scanHistory(row)
	if err != nil {
		return nil, notFound(err, "play history", id)
	}
	return h, nil
}

// GetByPath retrieves the entry for path on serverURL.
func (r *PlayHistoryRepository) GetByPath(serverURL, path string) (*models.PlayHistory, error) {
	row := r.db.QueryRow(`SELECT `+historyColumns+` FROM play_history WHERE server_url = ? AND file_path = ?`, serverURL, path)
	h, err := scanHistory(row)
	if err != nil {
		return nil, notFound(err, "play history", path)
	}
	return h, nil
}

// Update writes every mutable field of h.
func (r *PlayHistoryRepository) Update(h *models.PlayHistory) error {
	if err := h.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE play_history
		SET file_name = ?, file_size = ?, is_video = ?, duration = ?, current_position = ?,
			play_count = ?, thumb_url = ?, last_played_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, h.FileName(), h.FileSize(), h.IsVideo(), h.Duration(), h.CurrentPosition(),
		h.PlayCount(), h.ThumbURL(), h.LastPlayedAt().UTC(), h.ID())
	if err != nil {
		return fmt.Errorf("failed to update play history: %w", err)
	}
	return affected(result, "play history", h.ID())
}

// UpdatePosition stores the playback position (and duration, when known) in seconds.
func (r *PlayHistoryRepository) UpdatePosition(serverURL, path string, position, duration int64) error {
	if position < 0 || duration < 0 {
		return fmt.Errorf("%w: negative position or duration", shared.ErrValidation)
	}

	query := `
		UPDATE play_history
		SET current_position = ?, duration = CASE WHEN ? > 0 THEN ? ELSE duration END, last_played_at = ?
		WHERE server_url = ? AND file_path = ?
	`
	result, err := r.db.Exec(query, position, duration, duration, r.now().UTC(), serverURL, path)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return affected(result, "play history", path)
}

// Delete removes an entry by ID.
func (r *PlayHistoryRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM play_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete play history: %w", err)
	}
	return affected(result, "play history", id)
}

// List returns entries, most recently played first.
//
// Supported criteria: "server_url" (string), "is_video" (bool), "query" (string,
// matched against the file name) and "limit" (int).
func (r *PlayHistoryRepository) List(criteria map[string]any) ([]*models.PlayHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM play_history WHERE 1 = 1`
	args := []any{}

	if server, ok := criteria["server_url"].(string); ok && server != "" {
		query += " AND server_url = ?"
		args = append(args, server)
	}

	if video, ok := criteria["is_video"].(bool); ok {
		query += " AND is_video = ?"
		args = append(args, video)
	}

	if q, ok := criteria["query"].(string); ok && strings.TrimSpace(q) != "" {
		query += " AND file_name LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLike(strings.TrimSpace(q))+"%")
	}

	query += " ORDER BY last_played_at DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query play history: %w", err)
	}
	defer rows.Close()

	var entries []*models.PlayHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play history: %w", err)
		}
		entries = append(entries, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Recent returns the limit most recently played entries.
func (r *PlayHistoryRepository) Recent(limit int) ([]*models.PlayHistory, error) {
	return r.List(map[string]any{"limit": limit})
}

// Search matches q against file names.
func (r *PlayHistoryRepository) Search(q string, limit int) ([]*models.PlayHistory, error) {
	return r.List(map[string]any{"query": q, "limit": limit})
}

// Clear removes every entry and reports how many were deleted.
func (r *PlayHistoryRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM play_history`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear play history: %w", err)
	}
	return result.RowsAffected()
}

// Cleanup removes entries not played in the last days days.
func (r *PlayHistoryRepository) Cleanup(days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("%w: days must not be negative", shared.ErrInvalidArgument)
	}
	result, err := r.db.Exec(`DELETE FROM play_history WHERE last_played_at < ?`, cutoff(r.now(), days))
	if err != nil {
		return 0, fmt.Errorf("failed to clean up play history: %w", err)
	}
	return result.RowsAffected()
}

// Count returns the number of entries.
func (r *PlayHistoryRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM play_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count play history: %w", err)
	}
	return n, nil
}

func scanHistory(s scanner) (*models.PlayHistory, error) {
	var (
		id, serverURL, filePath, fileName, thumbURL string
		fileSize, duration, position                int64
		isVideo                                     bool
		playCount                                   int
		lastPlayedAt, createdAt                     time.Time
	)

	err := s.Scan(&id, &serverURL, &filePath, &fileName, &fileSize, &isVideo, &duration,
		&position, &playCount, &thumbURL, &lastPlayedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	return models.RestorePlayHistory(id, serverURL, filePath, fileName, fileSize, isVideo, duration,
		position, playCount, thumbURL, lastPlayedAt, createdAt), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
