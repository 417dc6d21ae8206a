package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bobmcallan/koru/internal/clients/gemini"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/services/chat"
)

// generationErrorTable maps a classified provider failure to the status
// and caller-facing message for it. Raw provider errors never reach the
// caller; they are logged before translation.
var generationErrorTable = map[interfaces.GenerationErrorKind]struct {
	status     int
	message    string
	retryAfter int
}{
	interfaces.GenErrRateLimited:    {http.StatusTooManyRequests, "The assistant is receiving too many requests. Please try again in a minute.", 60},
	interfaces.GenErrQuotaExhausted: {http.StatusServiceUnavailable, "The assistant is temporarily unavailable. Please try again later.", 0},
	interfaces.GenErrBadCredentials: {http.StatusServiceUnavailable, "The assistant is temporarily unavailable.", 0},
	interfaces.GenErrModelNotFound:  {http.StatusServiceUnavailable, "The assistant is temporarily unavailable.", 0},
	interfaces.GenErrTimeout:        {http.StatusGatewayTimeout, "The assistant took too long to respond. Please try again.", 0},
	interfaces.GenErrUnknown:        {http.StatusInternalServerError, "Something went wrong. Please try again.", 0},
}

// handleChat handles POST /api/chat: one user message in, a streamed
// assistant reply out.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}
	if s.chat == nil {
		WriteError(w, http.StatusServiceUnavailable, "The assistant is not configured on this server")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		WriteError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply, err := s.chat.Respond(r.Context(), sc.UserID, message)
	if err != nil {
		if errors.Is(err, chat.ErrPersistUserMessage) {
			WriteError(w, http.StatusInternalServerError, "Failed to save your message. Please try again.")
			return
		}

		kind := gemini.ClassifyError(err)
		entry := generationErrorTable[kind]
		s.logger.Error().Err(err).
			Str("user_id", sc.UserID).
			Int("kind", int(kind)).
			Int("status", entry.status).
			Msg("Generation call failed")

		if entry.retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(entry.retryAfter))
		}
		WriteJSON(w, entry.status, ErrorResponse{Error: entry.message, RetryAfter: entry.retryAfter})
		return
	}

	// The channel must be consumed to the end however this handler
	// exits (client gone, write panic), or the background persistence
	// never sees the full reply.
	defer func() {
		for range reply.Chunks {
		}
	}()

	// Stream chunks to the caller as they arrive. Persistence of the
	// full reply runs in the background and does not block this loop.
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for chunk := range reply.Chunks {
		if _, err := w.Write([]byte(chunk)); err != nil {
			s.logger.Debug().Err(err).Str("user_id", sc.UserID).Msg("Client disconnected during stream")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// handleChatHistory handles GET and DELETE on /api/chat/history.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}
	if s.chat == nil {
		WriteError(w, http.StatusServiceUnavailable, "The assistant is not configured on this server")
		return
	}

	if r.Method == http.MethodDelete {
		count, err := s.chat.ClearHistory(r.Context(), sc.UserID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Failed to clear chat history")
			WriteError(w, http.StatusInternalServerError, "Failed to clear chat history")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": count})
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	messages, err := s.chat.History(r.Context(), sc.UserID, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Failed to load chat history")
		WriteError(w, http.StatusInternalServerError, "Failed to load chat history")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}
