package server

import (
	"net/http"
	"strings"
)

// Page path groups for the route guards. Guards are prefix-based so
// nested paths (e.g. /settings/keys) inherit their section's rule.
var (
	protectedPaths  = []string{"/dashboard", "/chat", "/settings", "/portfolio"}
	authPaths       = []string{"/signin", "/signup"}
	onboardingPaths = []string{"/onboarding"}
)

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// pageHandler serves the static site with route guards in front:
// unauthenticated visitors are sent to sign-in before protected pages,
// authenticated-but-not-onboarded users are sent to onboarding first,
// and completed users are bounced off the auth and onboarding pages.
func (s *Server) pageHandler() http.Handler {
	files := http.FileServer(http.Dir(s.config.Pages.Dir))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := sessionFrom(r)
		path := r.URL.Path

		switch {
		case matchesAny(path, protectedPaths):
			if sc == nil {
				http.Redirect(w, r, "/signin", http.StatusFound)
				return
			}
			if !sc.Onboarded {
				http.Redirect(w, r, "/onboarding", http.StatusFound)
				return
			}

		case matchesAny(path, onboardingPaths):
			if sc == nil {
				http.Redirect(w, r, "/signin", http.StatusFound)
				return
			}
			if sc.Onboarded {
				http.Redirect(w, r, "/dashboard", http.StatusFound)
				return
			}

		case matchesAny(path, authPaths):
			if sc != nil && sc.Onboarded {
				http.Redirect(w, r, "/dashboard", http.StatusFound)
				return
			}
		}

		files.ServeHTTP(w, r)
	})
}
