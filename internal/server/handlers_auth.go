package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/models"
)

const authCookieName = "koru_token"

// --- JWT helpers ---

// signJWT creates a signed HMAC-SHA256 JWT for the given user and session ID.
func signJWT(user *models.User, sessionID, provider string, config *common.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"jti":      sessionID,
		"sub":      user.UserID,
		"email":    user.Email,
		"name":     user.Name,
		"provider": provider,
		"iss":      "koru-server",
		"iat":      now.Unix(),
		"exp":      now.Add(config.GetTokenExpiry()).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JWTSecret))
}

// validateJWT parses and validates a JWT token string using the given secret.
func validateJWT(tokenString string, secret []byte) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// resolveSession validates a token and loads the backing session and user.
// Revoked or missing sessions are rejected even when the JWT itself is valid.
func resolveSession(ctx context.Context, tokenString string, config *common.Config, storage interfaces.StorageManager) (*common.SessionContext, error) {
	claims, err := validateJWT(tokenString, []byte(config.Auth.JWTSecret))
	if err != nil {
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	jti, _ := claims["jti"].(string)
	if sub == "" || jti == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	session, err := storage.SessionStore().Get(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if session.Revoked || session.UserID != sub {
		return nil, fmt.Errorf("session revoked")
	}

	user, err := storage.UserStore().GetUser(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	return &common.SessionContext{
		UserID:    user.UserID,
		SessionID: jti,
		Role:      user.Role,
		Onboarded: user.Onboarded,
	}, nil
}

// sessionFrom returns the authenticated session, or nil.
func sessionFrom(r *http.Request) *common.SessionContext {
	return common.SessionFromContext(r.Context())
}

// requireSession writes a 401 and returns nil when the caller is not
// authenticated.
func requireSession(w http.ResponseWriter, r *http.Request) *common.SessionContext {
	sc := sessionFrom(r)
	if sc == nil {
		WriteError(w, http.StatusUnauthorized, "Authentication required")
		return nil
	}
	return sc
}

// issueSession creates a session record and returns its signed token.
func (s *Server) issueSession(ctx context.Context, user *models.User, provider string) (string, error) {
	sessionID := uuid.New().String()
	now := time.Now()

	token, err := signJWT(user, sessionID, provider, &s.config.Auth)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	session := &models.Session{
		ID:        sessionID,
		UserID:    user.UserID,
		Provider:  provider,
		CreatedAt: now,
		ExpiresAt: now.Add(s.config.Auth.GetTokenExpiry()),
	}
	if err := s.storage.SessionStore().Save(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return token, nil
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.config.Auth.GetTokenExpiry()),
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func userResponse(user *models.User) map[string]interface{} {
	return map[string]interface{}{
		"user_id":   user.UserID,
		"email":     user.Email,
		"name":      user.Name,
		"provider":  user.Provider,
		"role":      user.Role,
		"onboarded": user.Onboarded,
	}
}

// --- Email/password handlers ---

// handleAuthSignup handles POST /api/auth/signup.
func (s *Server) handleAuthSignup(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		WriteError(w, http.StatusBadRequest, "A valid email address is required")
		return
	}
	if len(req.Password) < 8 {
		WriteError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	ctx := r.Context()
	store := s.storage.UserStore()

	if _, err := store.GetUserByEmail(ctx, req.Email); err == nil {
		WriteError(w, http.StatusConflict, "An account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Password hash failed")
		WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	now := time.Now()
	user := &models.User{
		UserID:       "email_" + uuid.New().String(),
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Provider:     "email",
		Role:         models.RoleUser,
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	if err := store.SaveUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("email", req.Email).Msg("Failed to create user")
		WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, err := s.issueSession(ctx, user, "email")
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to issue session")
		WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	s.setAuthCookie(w, token)
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"user":  userResponse(user),
	})
}

// handleAuthLogin handles POST /api/auth/login.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	user, err := s.storage.UserStore().GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || user.PasswordHash == "" {
		WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := s.issueSession(ctx, user, user.Provider)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to issue session")
		WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	s.setAuthCookie(w, token)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  userResponse(user),
	})
}

// handleAuthLogout handles POST /api/auth/logout: revokes the current session.
func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}

	if err := s.storage.SessionStore().Revoke(r.Context(), sc.SessionID); err != nil {
		s.logger.Error().Err(err).Str("session_id", sc.SessionID).Msg("Failed to revoke session")
		WriteError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}

	s.clearAuthCookie(w)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAuthValidate handles POST /api/auth/validate: validate the current token.
func (s *Server) handleAuthValidate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}

	user, err := s.storage.UserStore().GetUser(r.Context(), sc.UserID)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user": userResponse(user),
	})
}

// handleOnboardingStatus handles GET /api/auth/onboarding-status.
func (s *Server) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}

	user, err := s.storage.UserStore().GetUser(r.Context(), sc.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Onboarding status lookup failed")
		WriteError(w, http.StatusInternalServerError, "Failed to load account")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"completed": user.Onboarded,
		"userId":    user.UserID,
	})
}

// --- OAuth handlers ---

// handleAuthOAuth handles POST /api/auth/oauth: exchange provider code for a token.
func (s *Server) handleAuthOAuth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Provider string `json:"provider"`
		Code     string `json:"code"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	var (
		userID, email, name string
		err                 error
	)
	switch req.Provider {
	case "google":
		userID, email, name, err = s.exchangeGoogleCode(r, req.Code)
	case "github":
		userID, email, name, err = s.exchangeGitHubCode(r, req.Code)
	case "dev":
		if s.config.IsProduction() {
			WriteError(w, http.StatusForbidden, "dev provider is not available in production")
			return
		}
		userID, email, name = "dev_user", "dev@koru.local", "Dev User"
	default:
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("unsupported provider: %s", req.Provider))
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("provider", req.Provider).Msg("OAuth code exchange failed")
		WriteError(w, http.StatusBadGateway, "Failed to sign in with "+req.Provider)
		return
	}

	ctx := r.Context()
	user := s.findOrCreateOAuthUser(ctx, userID, email, name, req.Provider)
	if user == nil {
		WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, err := s.issueSession(ctx, user, req.Provider)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.UserID).Msg("Failed to issue session")
		WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	s.setAuthCookie(w, token)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  userResponse(user),
	})
}

// exchangeGoogleCode exchanges a Google auth code for the user's identity.
func (s *Server) exchangeGoogleCode(r *http.Request, code string) (userID, email, name string, err error) {
	cfg := s.config.Auth.Google
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return "", "", "", fmt.Errorf("Google OAuth not configured")
	}

	tokenResp, err := http.PostForm("https://oauth2.googleapis.com/token", url.Values{
		"code":          {code},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"redirect_uri":  {s.oauthRedirectURI(r, "google")},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return "", "", "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenData struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenData); err != nil || tokenData.AccessToken == "" {
		return "", "", "", fmt.Errorf("no access token in response (provider error: %s)", tokenData.Error)
	}

	infoReq, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	infoReq.Header.Set("Authorization", "Bearer "+tokenData.AccessToken)
	infoResp, err := http.DefaultClient.Do(infoReq)
	if err != nil {
		return "", "", "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer infoResp.Body.Close()

	var userInfo struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(infoResp.Body).Decode(&userInfo); err != nil {
		return "", "", "", fmt.Errorf("failed to parse userinfo: %w", err)
	}

	return "google_" + userInfo.ID, userInfo.Email, userInfo.Name, nil
}

// exchangeGitHubCode exchanges a GitHub auth code for the user's identity.
func (s *Server) exchangeGitHubCode(r *http.Request, code string) (userID, email, name string, err error) {
	cfg := s.config.Auth.GitHub
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return "", "", "", fmt.Errorf("GitHub OAuth not configured")
	}

	body := url.Values{
		"code":          {code},
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"redirect_uri":  {s.oauthRedirectURI(r, "github")},
	}
	tokenReq, _ := http.NewRequestWithContext(r.Context(), http.MethodPost, "https://github.com/login/oauth/access_token", strings.NewReader(body.Encode()))
	tokenReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tokenReq.Header.Set("Accept", "application/json")
	tokenResp, err := http.DefaultClient.Do(tokenReq)
	if err != nil {
		return "", "", "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer tokenResp.Body.Close()

	var tokenData struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(tokenResp.Body).Decode(&tokenData); err != nil || tokenData.AccessToken == "" {
		return "", "", "", fmt.Errorf("no access token in response (provider error: %s)", tokenData.Error)
	}

	userReq, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, "https://api.github.com/user", nil)
	userReq.Header.Set("Authorization", "Bearer "+tokenData.AccessToken)
	userResp, err := http.DefaultClient.Do(userReq)
	if err != nil {
		return "", "", "", fmt.Errorf("user request failed: %w", err)
	}
	defer userResp.Body.Close()

	var ghUser struct {
		ID    int    `json:"id"`
		Login string `json:"login"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(userResp.Body).Decode(&ghUser); err != nil {
		return "", "", "", fmt.Errorf("failed to parse user info: %w", err)
	}

	email = ghUser.Email
	if email == "" {
		// Primary email requires a second call on GitHub.
		emailReq, _ := http.NewRequestWithContext(r.Context(), http.MethodGet, "https://api.github.com/user/emails", nil)
		emailReq.Header.Set("Authorization", "Bearer "+tokenData.AccessToken)
		if emailResp, err := http.DefaultClient.Do(emailReq); err == nil {
			defer emailResp.Body.Close()
			var emails []struct {
				Email    string `json:"email"`
				Primary  bool   `json:"primary"`
				Verified bool   `json:"verified"`
			}
			if err := json.NewDecoder(emailResp.Body).Decode(&emails); err == nil {
				for _, e := range emails {
					if e.Primary && e.Verified {
						email = e.Email
						break
					}
				}
			}
		}
	}

	name = ghUser.Name
	if name == "" {
		name = ghUser.Login
	}

	return fmt.Sprintf("github_%d", ghUser.ID), email, name, nil
}

// findOrCreateOAuthUser looks up or creates a user for an OAuth provider.
// It first checks by provider-specific userID, then by email for account linking.
func (s *Server) findOrCreateOAuthUser(ctx context.Context, userID, email, name, provider string) *models.User {
	store := s.storage.UserStore()

	if user, err := store.GetUser(ctx, userID); err == nil {
		changed := false
		if email != "" && user.Email != email {
			user.Email = email
			changed = true
		}
		if name != "" && user.Name != name {
			user.Name = name
			changed = true
		}
		if changed {
			user.ModifiedAt = time.Now()
			store.SaveUser(ctx, user)
		}
		return user
	}

	if email != "" {
		if existing, err := store.GetUserByEmail(ctx, email); err == nil {
			if name != "" && existing.Name != name {
				existing.Name = name
				existing.ModifiedAt = time.Now()
				store.SaveUser(ctx, existing)
			}
			return existing
		}
	}

	now := time.Now()
	user := &models.User{
		UserID:     userID,
		Email:      email,
		Name:       name,
		Provider:   provider,
		Role:       models.RoleUser,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := store.SaveUser(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create OAuth user")
		return nil
	}
	return user
}

// oauthRedirectURI builds the server-side redirect URI for OAuth callbacks.
func (s *Server) oauthRedirectURI(r *http.Request, provider string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api/auth/callback/%s", scheme, r.Host, provider)
}
