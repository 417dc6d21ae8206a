// Package chat implements the conversation pipeline between a user and
// the text-generation provider.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/models"
)

// ErrPersistUserMessage marks a failed user-message write. The generation
// provider is never invoked when this is returned.
var ErrPersistUserMessage = errors.New("failed to persist user message")

const DefaultHistoryWindow = 20

// Service turns one user message into a streamed, persisted assistant reply.
type Service struct {
	storage       interfaces.StorageManager
	generator     interfaces.GenerationClient
	logger        *common.Logger
	historyWindow int
}

// ServiceOption configures the service
type ServiceOption func(*Service)

// WithHistoryWindow sets how many prior messages seed each generation call.
func WithHistoryWindow(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new chat service.
func NewService(storage interfaces.StorageManager, generator interfaces.GenerationClient, opts ...ServiceOption) *Service {
	s := &Service{
		storage:       storage,
		generator:     generator,
		logger:        common.NewSilentLogger(),
		historyWindow: DefaultHistoryWindow,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Reply is an in-flight assistant reply. Chunks yields text fragments as
// the provider produces them and is closed when the stream ends. Done is
// closed after the background persistence of the full reply has settled,
// whether it succeeded or not.
type Reply struct {
	Chunks <-chan string
	Done   <-chan struct{}
}

// Respond runs the chat pipeline for one message: load context, persist
// the user message, start the generation call, and hand back the live
// stream. Context loading is best-effort; the user-message write is not.
// Returned provider errors carry the raw cause for classification.
func (s *Service) Respond(ctx context.Context, userID, message string) (*Reply, error) {
	system, history := s.assembleContext(ctx, userID)

	userMsg := &models.ChatMessage{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      models.ChatRoleUser,
		Content:   message,
		CreatedAt: time.Now(),
	}
	if err := s.storage.ChatStore().SaveMessage(ctx, userMsg); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("User message write failed")
		return nil, fmt.Errorf("%w: %w", ErrPersistUserMessage, err)
	}

	stream, err := s.generator.GenerateStream(ctx, &models.GenerationRequest{
		System:  system,
		History: history,
		Message: message,
	})
	if err != nil {
		return nil, err
	}

	chunks := make(chan string, 16)
	done := make(chan struct{})
	go s.drain(ctx, userID, stream, chunks, done)

	return &Reply{Chunks: chunks, Done: done}, nil
}

// assembleContext loads the profile and recent history. Either fetch may
// fail without aborting the request; the failure is logged and the
// request proceeds with base instructions or empty history.
func (s *Service) assembleContext(ctx context.Context, userID string) (string, []*models.ChatMessage) {
	var profile *models.Profile
	if p, err := s.storage.UserStore().GetProfile(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Profile fetch failed, using base instructions")
	} else {
		profile = p
	}

	var history []*models.ChatMessage
	if recent, err := s.storage.ChatStore().ListRecent(ctx, userID, s.historyWindow); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("History fetch failed, proceeding without context")
	} else {
		// ListRecent is newest-first; the provider wants oldest-first.
		history = make([]*models.ChatMessage, len(recent))
		for i, msg := range recent {
			history[len(recent)-1-i] = msg
		}
	}

	return ComposeSystemPrompt(profile), history
}

// drain forwards provider chunks to the caller while accumulating the
// full text, then persists one assistant row. The persistence write uses
// a detached context so a caller disconnect cannot cancel it, and its
// failure is logged only.
func (s *Service) drain(ctx context.Context, userID string, stream interfaces.GenerationStream, chunks chan<- string, done chan<- struct{}) {
	defer close(done)
	defer stream.Close()

	var full []byte
	for {
		chunk, err := stream.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Error().Err(err).Str("user_id", userID).Msg("Generation stream ended with error")
			}
			break
		}
		full = append(full, chunk...)
		chunks <- chunk
	}
	close(chunks)

	if len(full) == 0 {
		return
	}

	assistantMsg := &models.ChatMessage{
		ID:        uuid.New().String(),
		UserID:    userID,
		Role:      models.ChatRoleAssistant,
		Content:   string(full),
		CreatedAt: time.Now(),
	}
	if err := s.storage.ChatStore().SaveMessage(context.WithoutCancel(ctx), assistantMsg); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Assistant message write failed, reply lost from history")
	}
}

// History returns up to limit stored messages for the user, oldest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = s.historyWindow
	}
	recent, err := s.storage.ChatStore().ListRecent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	history := make([]*models.ChatMessage, len(recent))
	for i, msg := range recent {
		history[len(recent)-1-i] = msg
	}
	return history, nil
}

// ClearHistory deletes all stored messages for the user.
func (s *Service) ClearHistory(ctx context.Context, userID string) (int, error) {
	count, err := s.storage.ChatStore().DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear chat history: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Int("deleted", count).Msg("Chat history cleared")
	return count, nil
}
