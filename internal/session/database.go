package session

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"support-chat-backend/internal/db"
)

// DatabaseStore stores auth sessions in PostgreSQL
type DatabaseStore struct {
	db *db.DB
}

func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// SaveAuth saves or updates the auth record for a session
func (ds *DatabaseStore) SaveAuth(ctx context.Context, auth Auth) error {
	if err := requireID(auth.SessionID); err != nil {
		return err
	}
	if auth.UserID == "" || auth.AccessToken == "" {
		return errors.New("user_id and access_token are required")
	}

	query := `
		INSERT INTO auth_sessions (session_id, user_id, access_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (session_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			access_token = EXCLUDED.access_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`
	expires := sql.NullTime{Time: auth.ExpiresAt, Valid: !auth.ExpiresAt.IsZero()}
	if _, err := ds.db.ExecContext(ctx, query, auth.SessionID, auth.UserID, auth.AccessToken, expires); err != nil {
		return errors.Wrap(err, "failed to save auth session")
	}
	return nil
}

// GetAuth retrieves the auth record for a session
func (ds *DatabaseStore) GetAuth(ctx context.Context, sessionID string) (*Auth, error) {
	if err := requireID(sessionID); err != nil {
		return nil, err
	}

	query := `
		SELECT session_id, user_id, access_token, expires_at, created_at, updated_at
		FROM auth_sessions
		WHERE session_id = $1
	`
	var (
		auth    Auth
		expires sql.NullTime
	)
	err := ds.db.QueryRowContext(ctx, query, sessionID).Scan(
		&auth.SessionID,
		&auth.UserID,
		&auth.AccessToken,
		&expires,
		&auth.CreatedAt,
		&auth.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get auth session")
	}
	if expires.Valid {
		auth.ExpiresAt = expires.Time
	}
	return &auth, nil
}

// DeleteAuth removes the auth record for a session
func (ds *DatabaseStore) DeleteAuth(ctx context.Context, sessionID string) error {
	if err := requireID(sessionID); err != nil {
		return err
	}
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE session_id = $1`, sessionID); err != nil {
		return errors.Wrap(err, "failed to delete auth session")
	}
	return nil
}
