package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func getPage(env *testEnv, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: authCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	env.Server.Handler().ServeHTTP(rec, req)
	return rec
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Errorf("expected redirect to %s, got %s", location, got)
	}
}

func TestGuards_UnauthenticatedProtectedPage(t *testing.T) {
	env := newTestEnv()
	for _, path := range []string{"/dashboard", "/chat", "/settings", "/portfolio", "/settings/keys"} {
		rec := getPage(env, path, "")
		assertRedirect(t, rec, "/signin")
	}
}

func TestGuards_NotOnboardedProtectedPage(t *testing.T) {
	env := newTestEnv()
	token := env.createUser("alice", false)

	rec := getPage(env, "/dashboard", token)
	assertRedirect(t, rec, "/onboarding")
}

func TestGuards_OnboardedUserBouncedFromAuthPages(t *testing.T) {
	env := newTestEnv()
	token := env.createUser("alice", true)

	for _, path := range []string{"/signin", "/signup", "/onboarding"} {
		rec := getPage(env, path, token)
		assertRedirect(t, rec, "/dashboard")
	}
}

func TestGuards_NotOnboardedUserMayVisitOnboarding(t *testing.T) {
	env := newTestEnv()
	token := env.createUser("alice", false)

	rec := getPage(env, "/onboarding", token)
	if rec.Code == http.StatusFound {
		t.Fatalf("expected onboarding page served, got redirect to %s", rec.Header().Get("Location"))
	}
}

func TestGuards_OnboardedUserReachesProtectedPage(t *testing.T) {
	env := newTestEnv()
	token := env.createUser("alice", true)

	rec := getPage(env, "/dashboard", token)
	if rec.Code == http.StatusFound {
		t.Fatalf("expected dashboard served, got redirect to %s", rec.Header().Get("Location"))
	}
}

func TestGuards_StaleCookieFallsBackToSignin(t *testing.T) {
	env := newTestEnv()

	rec := getPage(env, "/dashboard", "not-a-valid-token")
	assertRedirect(t, rec, "/signin")
}

func TestGuards_PublicPagesUnaffected(t *testing.T) {
	env := newTestEnv()

	rec := getPage(env, "/", "")
	if rec.Code == http.StatusFound {
		t.Fatalf("expected landing page served, got redirect to %s", rec.Header().Get("Location"))
	}
}
