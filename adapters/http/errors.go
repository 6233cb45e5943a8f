package authhttp

import (
	"encoding/json"
	"errors"
	"net/http"

	core "github.com/PaulFidika/ssokit/core"
)

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErr(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errResp{Error: code})
}

func unauthorized(w http.ResponseWriter, code string) { sendErr(w, http.StatusUnauthorized, code) }
func serverErr(w http.ResponseWriter, code string)    { sendErr(w, http.StatusInternalServerError, code) }

// flowStatus maps a terminal flow failure to an HTTP status.
func flowStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrConfigurationIncomplete):
		return http.StatusInternalServerError
	case errors.Is(err, core.ErrTransport), errors.Is(err, core.ErrProfileParse):
		return http.StatusBadGateway
	case errors.Is(err, core.ErrAuthorizationServer):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrAccountClash):
		return http.StatusConflict
	case errors.Is(err, core.ErrPrivilegedAccount):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// sendFlowErr renders a terminal failure for a browser: the visitor-facing
// message as plain text.
func sendFlowErr(w http.ResponseWriter, err error) {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(flowStatus(err))
	_, _ = w.Write([]byte(core.UserMessage(err)))
}
