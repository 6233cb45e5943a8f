package authhttp

import (
	"net/http"
)

type sessionResponse struct {
	UserID int64 `json:"user_id"`
}

func (s *Service) handleSessionGET(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.sessions.Load(w, r).Current(r.Context())
	if !ok {
		unauthorized(w, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{UserID: uid})
}

func (s *Service) handleSessionDELETE(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	if _, ok := sess.Current(r.Context()); !ok {
		unauthorized(w, "unauthorized")
		return
	}
	if err := sess.Clear(r.Context()); err != nil {
		s.requestLog(r).WithError(err).Error("sso_logout_failed")
		serverErr(w, "failed_to_logout")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Handler mounts the SSO routes:
//
//	GET    /auth/sso       entry point and callback
//	GET    /auth/session   current session
//	DELETE /auth/session   log out
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /auth/sso", s.CallbackHandler())
	mux.HandleFunc("GET /auth/session", s.handleSessionGET)
	mux.HandleFunc("DELETE /auth/session", s.handleSessionDELETE)
	return mux
}
