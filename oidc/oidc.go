// Package oidckit talks to the external authorization server: it builds the
// authorize redirect, exchanges authorization codes for access tokens and
// fetches the userinfo profile for a bearer token.
package oidckit

import "errors"

// TokenResponse is the decoded token endpoint reply.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TransportError reports a network, timeout or HTTP-status failure on an outbound call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a well-formed error payload returned by the token endpoint.
type ServerError struct {
	Code        string
	Description string
}

func (e *ServerError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
