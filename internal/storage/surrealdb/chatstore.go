package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/models"
)

// ChatStore manages persisted chat messages.
type ChatStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewChatStore(db *surrealdb.DB, logger *common.Logger) *ChatStore {
	return &ChatStore{
		db:     db,
		logger: logger,
	}
}

func (s *ChatStore) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	sql := "UPSERT type::record('chat_message', $id) CONTENT $msg"
	vars := map[string]any{"id": msg.ID, "msg": msg}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.ChatMessage](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save chat message after retries: %w", err)
		}
	}
	return nil
}

// ListRecent returns up to limit messages for the user, newest first.
func (s *ChatStore) ListRecent(ctx context.Context, userID string, limit int) ([]*models.ChatMessage, error) {
	sql := "SELECT * FROM chat_message WHERE user_id = $user_id ORDER BY created_at DESC LIMIT $limit"
	vars := map[string]any{"user_id": userID, "limit": limit}

	results, err := surrealdb.Query[[]models.ChatMessage](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}

	var messages []*models.ChatMessage
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			messages = append(messages, &(*results)[0].Result[i])
		}
	}
	return messages, nil
}

func (s *ChatStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	sql := "DELETE chat_message WHERE user_id = $user_id RETURN BEFORE"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.ChatMessage](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chat messages: %w", err)
	}

	count := 0
	if results != nil && len(*results) > 0 {
		count = len((*results)[0].Result)
	}
	return count, nil
}
