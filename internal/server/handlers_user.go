package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/koru/internal/models"
)

var (
	validExperienceLevels = map[string]bool{"beginner": true, "intermediate": true, "advanced": true}
	validRiskTolerances   = map[string]bool{"low": true, "medium": true, "high": true}
)

type profileRequest struct {
	ExperienceLevel string   `json:"experienceLevel"`
	Objectives      []string `json:"objectives"`
	RiskTolerance   string   `json:"riskTolerance"`
}

func (req *profileRequest) validate(w http.ResponseWriter) bool {
	if !validExperienceLevels[req.ExperienceLevel] {
		WriteError(w, http.StatusBadRequest, "experienceLevel must be beginner, intermediate, or advanced")
		return false
	}
	if !validRiskTolerances[req.RiskTolerance] {
		WriteError(w, http.StatusBadRequest, "riskTolerance must be low, medium, or high")
		return false
	}
	return true
}

// handleProfile handles GET and PUT on /api/profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodGet {
		profile, err := s.storage.UserStore().GetProfile(ctx, sc.UserID)
		if err != nil {
			WriteError(w, http.StatusNotFound, "Profile not found")
			return
		}
		WriteJSON(w, http.StatusOK, profile)
		return
	}

	var req profileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if !req.validate(w) {
		return
	}

	now := time.Now()
	profile := &models.Profile{
		UserID:          sc.UserID,
		ExperienceLevel: req.ExperienceLevel,
		Objectives:      req.Objectives,
		RiskTolerance:   req.RiskTolerance,
		UpdatedAt:       now,
	}
	if existing, err := s.storage.UserStore().GetProfile(ctx, sc.UserID); err == nil {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}

	if err := s.storage.UserStore().SaveProfile(ctx, profile); err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Failed to save profile")
		WriteError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

// handleOnboarding handles POST /api/onboarding: saves the profile and
// marks the account onboarded in one step.
func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}

	var req profileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if !req.validate(w) {
		return
	}

	ctx := r.Context()
	store := s.storage.UserStore()

	user, err := store.GetUser(ctx, sc.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Onboarding user lookup failed")
		WriteError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}

	now := time.Now()
	profile := &models.Profile{
		UserID:          sc.UserID,
		ExperienceLevel: req.ExperienceLevel,
		Objectives:      req.Objectives,
		RiskTolerance:   req.RiskTolerance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := store.SaveProfile(ctx, profile); err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Failed to save onboarding profile")
		WriteError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}

	if !user.Onboarded {
		user.Onboarded = true
		user.ModifiedAt = now
		if err := store.SaveUser(ctx, user); err != nil {
			s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Failed to mark user onboarded")
			WriteError(w, http.StatusInternalServerError, "Failed to complete onboarding")
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"completed": true,
		"userId":    user.UserID,
	})
}

// handleAccount handles GET and DELETE on /api/account.
func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodGet {
		user, err := s.storage.UserStore().GetUser(ctx, sc.UserID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Account lookup failed")
			WriteError(w, http.StatusInternalServerError, "Failed to load account")
			return
		}
		WriteJSON(w, http.StatusOK, userResponse(user))
		return
	}

	if _, err := s.storage.SessionStore().RevokeByUser(ctx, sc.UserID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", sc.UserID).Msg("Failed to revoke sessions during account deletion")
	}
	if err := s.storage.UserStore().DeleteUser(ctx, sc.UserID); err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Account deletion failed")
		WriteError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	s.clearAuthCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
