package repository

import (
	"context"
	"database/sql"
	"strings"

	"smartcharge/backend/services/advisor-service/internal/models"
)

const defaultRecentSessions = 20

// SessionRepository reads charging history from the record store.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository returns repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// GetRecentSessionsByUser returns the user's latest completed sessions, newest first.
func (r *SessionRepository) GetRecentSessionsByUser(ctx context.Context, userID string, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = defaultRecentSessions
	}
	const query = `
		SELECT id, user_id::text, station_id, start_time, end_time, COALESCE(energy_kwh, 0)
		FROM charging_sessions
		WHERE user_id::text = $1
		  AND status = 'completed'
		  AND end_time IS NOT NULL
		ORDER BY start_time DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0, limit)
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.StationID,
			&s.StartTime,
			&s.EndTime,
			&s.EnergyKWh,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
