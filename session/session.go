// Package session keeps the local authenticated session established after a
// successful single sign-on. Session records live server-side in a Store; the
// browser only holds a signed cookie naming the record.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCookieName = "ssokit_session"
	DefaultTTL        = 14 * 24 * time.Hour
	keyPrefix         = "sso:session:"
	minSecretLen      = 32
)

// Store holds session records with a TTL. Missing keys are (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Options struct {
	// Secret signs session cookies (HS256). At least 32 bytes.
	Secret     []byte
	CookieName string
	TTL        time.Duration
	Domain     string
	Secure     bool
}

type record struct {
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager issues and resolves session cookies.
type Manager struct {
	store Store
	opts  Options
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewManager(store Store, opts Options) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store required")
	}
	if len(opts.Secret) < minSecretLen {
		return nil, fmt.Errorf("session: secret must be at least %d bytes", minSecretLen)
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Manager{store: store, opts: opts, log: logrus.StandardLogger(), now: time.Now}, nil
}

func (m *Manager) WithLogger(l logrus.FieldLogger) *Manager {
	if l != nil {
		m.log = l
	}
	return m
}

// Load resolves the session carried by r. Invalid or expired cookies yield an
// unauthenticated session; they are not errors.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *RequestSession {
	rs := &RequestSession{m: m, w: w}
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return rs
	}
	sid, uid, err := m.parse(c.Value)
	if err != nil {
		m.log.WithError(err).Debug("session_cookie_rejected")
		return rs
	}
	b, ok, err := m.store.Get(r.Context(), keyPrefix+sid)
	if err != nil {
		m.log.WithError(err).Warn("session_lookup_failed")
		return rs
	}
	if !ok {
		return rs
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil || rec.UserID != uid {
		return rs
	}
	rs.sid, rs.uid, rs.ok = sid, uid, true
	return rs
}

func (m *Manager) sign(sid string, uid int64) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        sid,
		Subject:   strconv.FormatInt(uid, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.opts.TTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.opts.Secret)
}

func (m *Manager) parse(raw string) (string, int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.opts.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(m.now))
	if err != nil {
		return "", 0, err
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return "", 0, fmt.Errorf("session id: %w", err)
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return "", 0, fmt.Errorf("session subject %q invalid", claims.Subject)
	}
	return claims.ID, uid, nil
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		Domain:   m.opts.Domain,
		MaxAge:   maxAge,
		Secure:   m.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// RequestSession is the session view for one HTTP request.
type RequestSession struct {
	m   *Manager
	w   http.ResponseWriter
	sid string
	uid int64
	ok  bool
}

func (s *RequestSession) Current(context.Context) (int64, bool) {
	return s.uid, s.ok
}

// Clear drops the server-side record and expires the cookie.
func (s *RequestSession) Clear(ctx context.Context) error {
	if s.sid != "" {
		if err := s.m.store.Del(ctx, keyPrefix+s.sid); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	if s.ok || s.sid != "" {
		http.SetCookie(s.w, s.m.cookie("", -1))
	}
	s.sid, s.uid, s.ok = "", 0, false
	return nil
}

// Establish starts a fresh session for userID.
func (s *RequestSession) Establish(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("invalid user id %d", userID)
	}
	sid := uuid.NewString()
	b, err := json.Marshal(record{UserID: userID, CreatedAt: s.m.now().UTC()})
	if err != nil {
		return err
	}
	if err := s.m.store.Set(ctx, keyPrefix+sid, b, s.m.opts.TTL); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	tok, err := s.m.sign(sid, userID)
	if err != nil {
		_ = s.m.store.Del(ctx, keyPrefix+sid)
		return fmt.Errorf("sign session: %w", err)
	}
	http.SetCookie(s.w, s.m.cookie(tok, int(s.m.opts.TTL.Seconds())))
	s.sid, s.uid, s.ok = sid, userID, true
	return nil
}
