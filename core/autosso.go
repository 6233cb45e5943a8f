package core

import (
	"context"
	"strings"
)

// AutoSSO decides whether an unauthenticated page view should be sent straight
// to the authorization endpoint. When it should, the returned URL carries the
// viewed page (on this site, at requestPath) as state so the visitor lands back
// on it after signing in.
func (s *Service) AutoSSO(ctx context.Context, authenticated bool, requestPath string) (string, bool, error) {
	if authenticated {
		return "", false, nil
	}
	cfg, err := s.Config(ctx)
	if err != nil {
		return "", false, err
	}
	if !cfg.AutoSSO {
		return "", false, nil
	}
	loc, err := s.AuthorizeURL(ctx, cfg, lastPage(cfg, requestPath))
	if err != nil {
		return "", false, err
	}
	return loc, true, nil
}

func lastPage(cfg Config, requestPath string) string {
	p := strings.Trim(requestPath, "/")
	if p == "" {
		return cfg.SiteURL
	}
	return cfg.SiteURL + "/" + p
}
