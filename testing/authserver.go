// Package testing provides an in-process OAuth2 authorization server for
// exercising the single sign-on flow end to end.
package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/PaulFidika/ssokit/core"
	"github.com/google/uuid"
)

// AuthServer speaks the authorization-code and userinfo endpoints the SSO
// client expects:
//
//	GET  /authorize   redirects back with a code for the queued profile
//	POST /token       exchanges a code for an access token
//	GET  /me          returns the profile for a bearer token
type AuthServer struct {
	ClientID     string
	ClientSecret string

	srv *httptest.Server

	mu     sync.Mutex
	next   *core.RemoteProfile
	codes  map[string]string
	tokens map[string]core.RemoteProfile
}

func NewAuthServer(clientID, clientSecret string) *AuthServer {
	a := &AuthServer{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		codes:        map[string]string{},
		tokens:       map[string]core.RemoteProfile{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /authorize", a.handleAuthorize)
	mux.HandleFunc("POST /token", a.handleToken)
	mux.HandleFunc("GET /me", a.handleUserInfo)
	a.srv = httptest.NewServer(mux)
	return a
}

func (a *AuthServer) URL() string { return a.srv.URL }

func (a *AuthServer) Close() { a.srv.Close() }

// Config returns a complete client configuration pointing at a, for a site
// served at siteURL.
func (a *AuthServer) Config(siteURL string) core.Config {
	return core.Config{
		ClientID:         a.ClientID,
		ClientSecret:     a.ClientSecret,
		ServerURL:        a.srv.URL + "/authorize",
		TokenEndpoint:    a.srv.URL + "/token",
		UserInfoEndpoint: a.srv.URL + "/me",
		SiteURL:          siteURL,
	}
}

// LoginAs queues the profile the next /authorize request signs in as.
func (a *AuthServer) LoginAs(p core.RemoteProfile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = &p
}

// IssueToken mints an access token for p directly, as the direct-token path
// would receive it.
func (a *AuthServer) IssueToken(p core.RemoteProfile) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	tok := uuid.NewString()
	a.tokens[tok] = p
	return tok
}

func (a *AuthServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != a.ClientID {
		http.Error(w, "unsupported request", http.StatusBadRequest)
		return
	}
	back, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || back.Scheme == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	p := a.next
	a.next = nil
	var code string
	if p != nil {
		code = uuid.NewString()
		tok := uuid.NewString()
		a.tokens[tok] = *p
		a.codes[code] = tok
	}
	a.mu.Unlock()

	v := back.Query()
	if code == "" {
		v.Set("error", "access_denied")
	} else {
		v.Set("code", code)
	}
	if s := q.Get("state"); s != "" {
		v.Set("state", s)
	}
	back.RawQuery = v.Encode()
	http.Redirect(w, r, back.String(), http.StatusFound)
}

func (a *AuthServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if r.PostForm.Get("client_id") != a.ClientID || r.PostForm.Get("client_secret") != a.ClientSecret {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "unknown client")
		return
	}
	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}

	a.mu.Lock()
	tok, ok := a.codes[r.PostForm.Get("code")]
	delete(a.codes, r.PostForm.Get("code"))
	a.mu.Unlock()
	if !ok {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "The authorization code is invalid or expired")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": tok,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (a *AuthServer) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "")
		return
	}
	a.mu.Lock()
	p, ok := a.tokens[h[len(prefix):]]
	a.mu.Unlock()
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_token", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

func writeOAuthError(w http.ResponseWriter, status int, code, desc string) {
	body := map[string]string{"error": code}
	if desc != "" {
		body["error_description"] = desc
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
