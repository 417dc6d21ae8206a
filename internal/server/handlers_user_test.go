package server

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestOnboarding_CompletesAccount(t *testing.T) {
	env := newTestEnv()
	token := env.createUser("alice", false)

	rec := doJSON(env, http.MethodPost, "/api/onboarding", token,
		`{"experienceLevel":"beginner","objectives":["learn defi"],"riskTolerance":"low"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Completed bool   `json:"completed"`
		UserID    string `json:"userId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !resp.Completed {
		t.Error("expected completed=true")
	}

	if !env.Storage.Users["alice"].Onboarded {
		t.Error("expected user marked onboarded")
	}
	profile := env.Storage.Profiles["alice"]
	if profile == nil {
		t.Fatal("expected profile saved")
	}
	if profile.ExperienceLevel != "beginner" || profile.RiskTolerance != "low" {
		t.Errorf("unexpected profile: %+v", profile)
	}
}

func TestOnboarding_RejectsInvalidValues(t *testing.T) {
	env := newTestEnv()
	token := env.createUser("alice", false)

	cases := []string{
		`{"experienceLevel":"expert","objectives":[],"riskTolerance":"low"}`,
		`{"experienceLevel":"beginner","objectives":[],"riskTolerance":"extreme"}`,
	}
	for _, body := range cases {
		rec := doJSON(env, http.MethodPost, "/api/onboarding", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
	if env.Storage.Users["alice"].Onboarded {
		t.Error("invalid onboarding must not mark the user onboarded")
	}
}

func TestProfile_GetAndUpdate(t *testing.T) {
	env := newTestEnv()
	token := env.createUser("alice", true)

	rec := doJSON(env, http.MethodGet, "/api/profile", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before profile exists, got %d", rec.Code)
	}

	rec = doJSON(env, http.MethodPut, "/api/profile", token,
		`{"experienceLevel":"intermediate","objectives":["trading"],"riskTolerance":"medium"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(env, http.MethodGet, "/api/profile", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after save, got %d", rec.Code)
	}

	var profile struct {
		ExperienceLevel string `json:"experience_level"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("failed to parse profile: %v", err)
	}
	if profile.ExperienceLevel != "intermediate" {
		t.Errorf("expected experience_level=intermediate, got %q", profile.ExperienceLevel)
	}
}

func TestAccount_DeleteCascades(t *testing.T) {
	env := newTestEnv()
	token := env.createUser("alice", true)

	rec := doJSON(env, http.MethodDelete, "/api/account", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := env.Storage.Users["alice"]; ok {
		t.Error("expected user deleted")
	}

	// The token's session is revoked; subsequent calls are rejected.
	rec = doJSON(env, http.MethodGet, "/api/account", token, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after deletion, got %d", rec.Code)
	}
}
