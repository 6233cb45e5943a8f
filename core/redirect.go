package core

import (
	"context"
	"net/url"
	"strings"
)

// DefaultRedirectTarget is the post-login destination used when the request
// names none: the dashboard when configured so, otherwise the site root.
// Registered redirect filters may replace it.
func (s *Service) DefaultRedirectTarget(ctx context.Context, cfg Config) string {
	target := cfg.SiteURL
	if cfg.RedirectToDashboard {
		target = cfg.DashboardURL
	}
	for _, f := range s.filters {
		target = f(ctx, target)
	}
	return target
}

// AuthorizeURL builds the authorization request for cfg. target travels as the
// state parameter, encoded exactly once.
func (s *Service) AuthorizeURL(ctx context.Context, cfg Config, target string) (string, error) {
	rp, err := s.relyingParty(cfg)
	if err != nil {
		return "", err
	}
	s.metrics.IncAuthorize()
	return rp.AuthURL(target), nil
}

// safeRedirect returns target when it stays on this site or an allowed host,
// and fallback otherwise.
func safeRedirect(cfg Config, target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil {
		return fallback
	}
	if u.Scheme == "" && u.Host == "" {
		if strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, `/\`) {
			return target
		}
		return fallback
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fallback
	}
	host := strings.ToLower(u.Hostname())
	if site, err := url.Parse(cfg.SiteURL); err == nil && strings.EqualFold(site.Hostname(), host) {
		return target
	}
	for _, h := range cfg.AllowedRedirectHosts {
		if strings.EqualFold(strings.TrimSpace(h), host) {
			return target
		}
	}
	return fallback
}
