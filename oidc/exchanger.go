package oidckit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/zitadel/oidc/v2/pkg/client/rp"
	"github.com/zitadel/oidc/v2/pkg/oidc"
	"golang.org/x/oauth2"
)

const maxUserInfoBody = 1 << 20

// Exchange trades an authorization code for an access token with a single
// form-encoded POST (grant_type, code, client_id, client_secret, redirect_uri).
// It never retries: authorization codes are single use.
func (p *RelyingParty) Exchange(ctx context.Context, code string) (TokenResponse, error) {
	tokens, err := rp.CodeExchange[*oidc.IDTokenClaims](ctx, code, p.rp)
	if err != nil {
		return classifyExchangeError(err)
	}
	if tokens == nil || tokens.Token == nil || strings.TrimSpace(tokens.AccessToken) == "" {
		return TokenResponse{}, &ServerError{Code: "invalid_response", Description: "token response missing access_token"}
	}
	return TokenResponse{AccessToken: tokens.AccessToken}, nil
}

func classifyExchangeError(err error) (TokenResponse, error) {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode != "" {
			resp := TokenResponse{Error: re.ErrorCode, ErrorDescription: re.ErrorDescription}
			return resp, &ServerError{Code: re.ErrorCode, Description: re.ErrorDescription}
		}
		status := "error status"
		if re.Response != nil {
			status = re.Response.Status
		}
		return TokenResponse{}, &TransportError{Op: "token exchange", Err: fmt.Errorf("token endpoint returned %s", status)}
	}
	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) {
		return TokenResponse{}, &TransportError{Op: "token exchange", Err: err}
	}
	return TokenResponse{}, &ServerError{Code: "invalid_response", Description: err.Error()}
}

// UserInfo fetches the raw profile document for accessToken. The body is
// returned even when err is non-nil so callers can still attempt to parse it.
func (p *RelyingParty) UserInfo(ctx context.Context, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.ep.UserInfoURL, nil)
	if err != nil {
		return nil, &TransportError{Op: "userinfo", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, &TransportError{Op: "userinfo", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBody))
	if err != nil {
		return body, &TransportError{Op: "userinfo", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &TransportError{Op: "userinfo", Err: fmt.Errorf("userinfo endpoint returned %s", resp.Status)}
	}
	return body, nil
}
