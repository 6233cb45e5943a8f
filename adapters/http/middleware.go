package authhttp

import (
	"net/http"
	"strings"
)

// Middleware serves any request carrying auth=sso as the SSO entry point and,
// when auto SSO is enabled, sends unauthenticated page views to the
// authorization endpoint. Everything else reaches next.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("auth") == "sso" {
			s.handleCallbackGET(w, r)
			return
		}
		if s.autoSSO(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) autoSSO(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	for _, p := range s.autoSSOSkip {
		if strings.HasPrefix(r.URL.Path, p) {
			return false
		}
	}

	_, authenticated := s.sessions.Load(w, r).Current(r.Context())
	loc, ok, err := s.svc.AutoSSO(r.Context(), authenticated, r.URL.Path)
	if err != nil {
		s.requestLog(r).WithError(err).Debug("sso_auto_skipped")
		return false
	}
	if !ok {
		return false
	}
	s.requestLog(r).Info("sso_auto_redirect")
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, loc, http.StatusFound)
	return true
}
