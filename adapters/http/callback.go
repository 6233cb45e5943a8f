package authhttp

import (
	"net/http"

	core "github.com/PaulFidika/ssokit/core"
)

// CallbackHandler serves the SSO entry point and callback. Without code or
// token it redirects to the authorization endpoint; with either it completes
// the login and redirects to the post-login target.
func (s *Service) CallbackHandler() http.Handler {
	return http.HandlerFunc(s.handleCallbackGET)
}

func (s *Service) handleCallbackGET(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	params := core.CallbackParams{
		Code:        q.Get("code"),
		Token:       q.Get("token"),
		State:       q.Get("state"),
		RedirectURI: q.Get("redirect_uri"),
	}
	log := s.requestLog(r).WithField("grant", params.Grant())

	sess := s.sessions.Load(w, r)
	d, err := s.svc.HandleCallback(r.Context(), params, sess)
	if err != nil {
		log.WithError(err).Warn("sso_callback_failed")
		sendFlowErr(w, err)
		return
	}
	log.WithField("action", d.Action).Info("sso_callback")
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, d.Location, http.StatusFound)
}
