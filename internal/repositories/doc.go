// Package repositories implements SQLite persistence for the locally stored records.
//
// Each repository implements [models.Repository] for one entity and wraps
// missing rows in [shared.ErrNotFound].
//
// Key Implementations:
//   - [PlayHistoryRepository] : media opened from a server, one row per (server, path) with a play count
//   - [LoginAttemptRepository] : append-only audit trail of manual and automatic logins
//
// Timestamps are written in UTC so that range deletes ([PlayHistoryRepository.Cleanup])
// compare correctly against the driver's text encoding.
package repositories
