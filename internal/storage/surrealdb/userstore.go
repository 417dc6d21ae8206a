package surrealdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/models"
)

// UserStore manages user accounts and onboarding profiles.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{
		db:     db,
		logger: logger,
	}
}

func (s *UserStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := surrealdb.Select[models.User](ctx, s.db, surrealmodels.NewRecordID("user", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	if user == nil {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	sql := "SELECT * FROM user WHERE email = $email LIMIT 1"
	vars := map[string]any{"email": email}

	results, err := surrealdb.Query[[]models.User](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, errors.New("user not found")
	}
	return &(*results)[0].Result[0], nil
}

func (s *UserStore) SaveUser(ctx context.Context, user *models.User) error {
	sql := "UPSERT type::record('user', $id) CONTENT $user"
	vars := map[string]any{"id": user.UserID, "user": user}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.User](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save user after retries: %w", err)
		}
	}
	return nil
}

// DeleteUser removes a user and all owned records (cascade).
func (s *UserStore) DeleteUser(ctx context.Context, userID string) error {
	if _, err := surrealdb.Delete[models.User](ctx, s.db, surrealmodels.NewRecordID("user", userID)); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	// Cascade: owned rows across all tables.
	for _, table := range []string{"profile", "session", "chat_message", "holding", "exchange_key"} {
		sql := fmt.Sprintf("DELETE %s WHERE user_id = $user_id", table)
		if _, err := surrealdb.Query[any](ctx, s.db, sql, map[string]any{"user_id": userID}); err != nil {
			return fmt.Errorf("failed to cascade delete %s: %w", table, err)
		}
	}
	return nil
}

func (s *UserStore) ListUsers(ctx context.Context) ([]string, error) {
	list, err := surrealdb.Select[[]models.User](ctx, s.db, surrealmodels.Table("user"))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var userIDs []string
	if list != nil {
		for _, u := range *list {
			if u.UserID != "" {
				userIDs = append(userIDs, u.UserID)
			}
		}
	}
	return userIDs, nil
}

// One profile per user: the profile record ID is the user ID.

func (s *UserStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := surrealdb.Select[models.Profile](ctx, s.db, surrealmodels.NewRecordID("profile", userID))
	if err != nil {
		return nil, fmt.Errorf("failed to select profile: %w", err)
	}
	if profile == nil {
		return nil, errors.New("profile not found")
	}
	return profile, nil
}

func (s *UserStore) SaveProfile(ctx context.Context, profile *models.Profile) error {
	sql := "UPSERT type::record('profile', $id) CONTENT $profile"
	vars := map[string]any{"id": profile.UserID, "profile": profile}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Profile](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save profile after retries: %w", err)
		}
	}
	return nil
}

func (s *UserStore) DeleteProfile(ctx context.Context, userID string) error {
	_, err := surrealdb.Delete[models.Profile](ctx, s.db, surrealmodels.NewRecordID("profile", userID))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

func (s *UserStore) Close() error {
	return nil
}
