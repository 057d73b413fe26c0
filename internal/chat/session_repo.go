package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/expenseworks/expense-management/internal/models"
	"go.uber.org/zap"
)

// SessionRepository persists chat transcripts between requests, one JSON
// blob per session key. Save replaces the whole transcript; Load returns the
// last-saved ordered sequence or an empty one.
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Load returns the transcript for a session, or nil when none exists.
func (r *SessionRepository) Load(ctx context.Context, sessionID string) ([]models.ChatMessageItem, error) {
	var transcript string
	err := r.db.QueryRowContext(ctx,
		"SELECT transcript FROM chat_sessions WHERE session_id = ?",
		sessionID,
	).Scan(&transcript)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load transcript",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	var messages []models.ChatMessageItem
	if err := json.Unmarshal([]byte(transcript), &messages); err != nil {
		return nil, fmt.Errorf("failed to decode transcript: %w", err)
	}

	return messages, nil
}

// Save replaces the session transcript with the given ordered sequence.
func (r *SessionRepository) Save(ctx context.Context, sessionID string, messages []models.ChatMessageItem) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}

	query := `
		INSERT INTO chat_sessions (session_id, transcript, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			transcript = excluded.transcript,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, sessionID, string(data)); err != nil {
		r.logger.Error("Failed to save transcript",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	return nil
}

// Clear removes the transcript for a session.
func (r *SessionRepository) Clear(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM chat_sessions WHERE session_id = ?",
		sessionID,
	); err != nil {
		r.logger.Error("Failed to clear transcript",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	return nil
}
