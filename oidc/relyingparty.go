package oidckit

import (
	"errors"
	"net/http"

	"github.com/zitadel/oidc/v2/pkg/client/rp"
	"golang.org/x/oauth2"
)

// Endpoints holds client credentials and authorization server URLs.
type Endpoints struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	// RedirectURL is this application's fixed callback URL.
	RedirectURL string
}

// RelyingParty is an OAuth2-only (no ID token) client for one configuration snapshot.
type RelyingParty struct {
	ep Endpoints
	rp rp.RelyingParty
}

// New builds a relying party bound to hc. Credentials travel in the request
// body, which is what the authorization server expects.
func New(ep Endpoints, hc *http.Client) (*RelyingParty, error) {
	if hc == nil {
		return nil, errors.New("http client required")
	}
	cfg := &oauth2.Config{
		ClientID:     ep.ClientID,
		ClientSecret: ep.ClientSecret,
		RedirectURL:  ep.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   ep.AuthURL,
			TokenURL:  ep.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	r, err := rp.NewRelyingPartyOAuth(cfg, rp.WithHTTPClient(hc))
	if err != nil {
		return nil, err
	}
	return &RelyingParty{ep: ep, rp: r}, nil
}

// AuthURL builds the authorization request URL carrying state verbatim.
// The server expects the "oauth=authorize" trigger and the client secret next
// to the standard response_type/client_id/redirect_uri parameters.
func (p *RelyingParty) AuthURL(state string) string {
	return rp.AuthURL(state, p.rp,
		rp.AuthURLOpt(rp.WithURLParam("oauth", "authorize")),
		rp.AuthURLOpt(rp.WithURLParam("client_secret", p.ep.ClientSecret)),
	)
}

func (p *RelyingParty) httpClient() *http.Client { return p.rp.HttpClient() }
