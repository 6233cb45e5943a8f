package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	oidckit "github.com/PaulFidika/ssokit/oidc"
	"github.com/sirupsen/logrus"
)

// CallbackParams are the query values of a callback request.
type CallbackParams struct {
	Code        string
	Token       string
	State       string
	RedirectURI string
}

type Grant string

const (
	GrantNone  Grant = "none"
	GrantCode  Grant = "code"
	GrantToken Grant = "token"
)

// Grant reports which credential the callback carries. An empty value counts
// as absent, and a code wins over a token.
func (p CallbackParams) Grant() Grant {
	switch {
	case sanitizeText(p.Code) != "":
		return GrantCode
	case sanitizeText(p.Token) != "":
		return GrantToken
	default:
		return GrantNone
	}
}

type Action string

const (
	// ActionRedirectHome: the visitor was already signed in.
	ActionRedirectHome Action = "redirect_home"
	// ActionAuthorize: send the visitor to the authorization endpoint.
	ActionAuthorize Action = "authorize"
	// ActionLoggedIn: a session was established; send the visitor to Location.
	ActionLoggedIn Action = "logged_in"
)

// Decision tells the HTTP boundary where to send the browser.
type Decision struct {
	Action   Action
	Location string
	Outcome  Outcome
}

// HandleCallback runs one pass of the callback flow. Any error it returns is a
// *FlowError; by then sess has been cleared.
func (s *Service) HandleCallback(ctx context.Context, p CallbackParams, sess Session) (Decision, error) {
	if _, ok := sess.Current(ctx); ok {
		return Decision{Action: ActionRedirectHome, Location: s.homeURL(ctx)}, nil
	}
	cfg, err := s.Config(ctx)
	if err != nil {
		return s.abort(ctx, sess, p.Grant(), err)
	}

	target := s.DefaultRedirectTarget(ctx, cfg)
	if p.RedirectURI != "" {
		target = p.RedirectURI
	}

	grant := p.Grant()
	if grant == GrantNone {
		loc, err := s.AuthorizeURL(ctx, cfg, target)
		if err != nil {
			return s.abort(ctx, sess, grant, err)
		}
		return Decision{Action: ActionAuthorize, Location: loc}, nil
	}

	if p.State != "" {
		target = p.State
	}
	rp, err := s.relyingParty(cfg)
	if err != nil {
		return s.abort(ctx, sess, grant, err)
	}

	token := sanitizeText(p.Token)
	if grant == GrantCode {
		start := time.Now()
		resp, err := rp.Exchange(ctx, sanitizeText(p.Code))
		s.metrics.ObserveOutbound("token", start, err)
		if err != nil {
			return s.abort(ctx, sess, grant, exchangeError(err))
		}
		token = resp.AccessToken
	}
	return s.completeLogin(ctx, cfg, rp, token, target, sess, grant)
}

// homeURL is the site root. It does not require a complete configuration; a
// signed-in visitor is sent home even while SSO settings are broken.
func (s *Service) homeURL(ctx context.Context) string {
	if s.config != nil {
		if raw, err := s.config.Load(ctx); err == nil {
			if site := strings.TrimRight(strings.TrimSpace(raw.SiteURL), "/"); site != "" {
				return site
			}
		}
	}
	return "/"
}

// completeLogin is shared by the code and token grants once an access token is in hand.
func (s *Service) completeLogin(ctx context.Context, cfg Config, rp *oidckit.RelyingParty, token, target string, sess Session, grant Grant) (Decision, error) {
	start := time.Now()
	body, err := rp.UserInfo(ctx, token)
	s.metrics.ObserveOutbound("userinfo", start, err)
	if err != nil {
		// Not fatal: an unusable body fails the parse below.
		s.log.WithError(err).WithField("grant", grant).Warn("sso_userinfo_failed")
	}

	profile, err := ParseProfile(body)
	if err != nil {
		return s.abort(ctx, sess, grant, newFlowError(ErrProfileParse, "", err))
	}

	out, err := s.reconciler().Reconcile(ctx, profile)
	if err != nil {
		return s.abort(ctx, sess, grant, err)
	}

	if err := sess.Clear(ctx); err != nil {
		return s.abort(ctx, sess, grant, newFlowError(ErrAccountClash, "", fmt.Errorf("clear session: %w", err)))
	}
	if err := sess.Establish(ctx, out.UserID); err != nil {
		return s.abort(ctx, sess, grant, newFlowError(ErrAccountClash, "", fmt.Errorf("establish session: %w", err)))
	}
	if uid, ok := sess.Current(ctx); !ok || uid != out.UserID {
		return s.abort(ctx, sess, grant, newFlowError(ErrAccountClash, "", errors.New("session not active after establish")))
	}

	loc := safeRedirect(cfg, target, s.DefaultRedirectTarget(ctx, cfg))
	s.metrics.IncLogin(string(grant), string(out.Kind))
	s.log.WithFields(logrus.Fields{
		"grant":   grant,
		"user_id": out.UserID,
		"outcome": out.Kind,
	}).Info("sso_login_completed")
	return Decision{Action: ActionLoggedIn, Location: loc, Outcome: out}, nil
}

func exchangeError(err error) error {
	if oidckit.IsTransport(err) {
		return newFlowError(ErrTransport, "", err)
	}
	var se *oidckit.ServerError
	if errors.As(err, &se) {
		return newFlowError(ErrAuthorizationServer, se.Error(), err)
	}
	return newFlowError(ErrTransport, "", err)
}

func (s *Service) abort(ctx context.Context, sess Session, grant Grant, err error) (Decision, error) {
	if cerr := sess.Clear(ctx); cerr != nil {
		s.log.WithError(cerr).Error("sso_session_clear_failed")
	}
	s.logAbort(ctx, grant, err)
	return Decision{}, err
}

func (s *Service) logAbort(ctx context.Context, grant Grant, err error) {
	kind := "unknown"
	var fe *FlowError
	if errors.As(err, &fe) {
		kind = fe.Kind.Error()
	}
	s.metrics.IncFailure(kind)
	s.log.WithError(err).WithFields(logrus.Fields{"grant": grant, "kind": kind}).WithContext(ctx).Error("sso_aborted")
}

var (
	scriptPattern = regexp.MustCompile(`(?is)<(script|style)[^>]*?>.*?</(script|style)>`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	octetPattern  = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
	spacesPattern = regexp.MustCompile(`\s+`)
)

// sanitizeText strips markup, control characters, percent-encoded octets and
// redundant whitespace from a single-line query value.
func sanitizeText(v string) string {
	if v == "" {
		return ""
	}
	if !utf8.ValidString(v) {
		v = strings.ToValidUTF8(v, "")
	}
	v = scriptPattern.ReplaceAllString(v, "")
	v = tagPattern.ReplaceAllString(v, "")
	v = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, v)
	for {
		stripped := octetPattern.ReplaceAllString(v, "")
		if stripped == v {
			break
		}
		v = stripped
	}
	v = spacesPattern.ReplaceAllString(v, " ")
	return strings.TrimSpace(v)
}
