// Package authhttp mounts the single sign-on flow on net/http.
package authhttp

import (
	"net/http"
	"strings"

	core "github.com/PaulFidika/ssokit/core"
	"github.com/PaulFidika/ssokit/session"
	"github.com/sirupsen/logrus"
)

// Service wraps core.Service and a session manager with net/http handlers.
type Service struct {
	svc      *core.Service
	sessions *session.Manager
	clientIP ClientIPFunc
	log      logrus.FieldLogger
	// autoSSOSkip lists path prefixes that never trigger auto SSO.
	autoSSOSkip []string
}

func NewService(svc *core.Service, sessions *session.Manager) *Service {
	return &Service{
		svc:         svc,
		sessions:    sessions,
		clientIP:    DefaultClientIP(),
		log:         logrus.StandardLogger(),
		autoSSOSkip: []string{"/auth/", "/healthz", "/metrics"},
	}
}

func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn == nil {
		s.clientIP = DefaultClientIP()
		return s
	}
	s.clientIP = fn
	return s
}

// WithAutoSSOSkip adds path prefixes (API routes, assets) that are served
// without the auto SSO redirect.
func (s *Service) WithAutoSSOSkip(prefixes ...string) *Service {
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			s.autoSSOSkip = append(s.autoSSOSkip, p)
		}
	}
	return s
}

func (s *Service) Core() *core.Service { return s.svc }

func (s *Service) Sessions() *session.Manager { return s.sessions }

func (s *Service) requestLog(r *http.Request) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"client_ip":  s.clientIP(r),
		"request_id": requestID(r),
	}).WithContext(r.Context())
}
