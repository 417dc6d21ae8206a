package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/models"
)

// SessionStore manages issued-token records, keyed by the token's jti.
type SessionStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewSessionStore(db *surrealdb.DB, logger *common.Logger) *SessionStore {
	return &SessionStore{
		db:     db,
		logger: logger,
	}
}

func (s *SessionStore) Save(ctx context.Context, session *models.Session) error {
	sql := "UPSERT type::record('session', $id) CONTENT $session"
	vars := map[string]any{"id": session.ID, "session": session}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Session](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save session after retries: %w", err)
		}
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	session, err := surrealdb.Select[models.Session](ctx, s.db, surrealmodels.NewRecordID("session", id))
	if err != nil {
		return nil, fmt.Errorf("failed to select session: %w", err)
	}
	if session == nil {
		return nil, errors.New("session not found")
	}
	return session, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	sql := "UPDATE type::record('session', $id) SET revoked = true, revoked_at = $at"
	vars := map[string]any{"id": id, "at": time.Now()}

	if _, err := surrealdb.Query[[]models.Session](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *SessionStore) RevokeByUser(ctx context.Context, userID string) (int, error) {
	sql := "UPDATE session SET revoked = true, revoked_at = $at WHERE user_id = $user_id AND revoked = false RETURN AFTER"
	vars := map[string]any{"user_id": userID, "at": time.Now()}

	results, err := surrealdb.Query[[]models.Session](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	return count, nil
}
