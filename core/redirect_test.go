package core

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRedirectTarget(t *testing.T) {
	cfg, err := validConfig().Validate()
	require.NoError(t, err)
	svc := NewService(StaticConfig(cfg), newFakeUsers())

	require.Equal(t, "https://site.example", svc.DefaultRedirectTarget(context.Background(), cfg))

	cfg.RedirectToDashboard = true
	require.Equal(t, "https://site.example/dashboard", svc.DefaultRedirectTarget(context.Background(), cfg))

	svc.WithRedirectFilter(func(_ context.Context, target string) string {
		return target + "?welcome=1"
	}).WithRedirectFilter(func(_ context.Context, target string) string {
		return strings.Replace(target, "/dashboard", "/account", 1)
	})
	require.Equal(t, "https://site.example/account?welcome=1", svc.DefaultRedirectTarget(context.Background(), cfg))
}

func TestAuthorizeURL_Scenario(t *testing.T) {
	cfg, err := Config{
		ClientID:         "abc",
		ClientSecret:     "...",
		ServerURL:        "https://auth.example",
		TokenEndpoint:    "https://auth.example/token",
		UserInfoEndpoint: "https://auth.example/me",
		SiteURL:          "https://site.example",
	}.Validate()
	require.NoError(t, err)
	svc := NewService(StaticConfig(cfg), newFakeUsers())

	loc, err := svc.AuthorizeURL(context.Background(), cfg, svc.DefaultRedirectTarget(context.Background(), cfg))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(loc, "https://auth.example?"), loc)

	u, err := url.Parse(loc)
	require.NoError(t, err)
	require.Equal(t, url.Values{
		"oauth":         {"authorize"},
		"response_type": {"code"},
		"client_id":     {"abc"},
		"client_secret": {"..."},
		"redirect_uri":  {"https://site.example/?auth=sso"},
		"state":         {"https://site.example"},
	}, u.Query())
}

func TestSafeRedirect(t *testing.T) {
	cfg := Config{SiteURL: "https://site.example", AllowedRedirectHosts: []string{"shop.example"}}
	const fallback = "https://site.example/dashboard"

	cases := []struct {
		target string
		want   string
	}{
		{"https://site.example/a?b=c", "https://site.example/a?b=c"},
		{"http://SITE.example:8080/x", "http://SITE.example:8080/x"},
		{"https://shop.example/cart", "https://shop.example/cart"},
		{"/relative/path", "/relative/path"},
		{"", fallback},
		{"https://evil.example", fallback},
		{"//evil.example/x", fallback},
		{`/\evil.example`, fallback},
		{"javascript:alert(1)", fallback},
		{"relative-without-slash", fallback},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, safeRedirect(cfg, tc.target, fallback), tc.target)
	}
}

func TestAutoSSO(t *testing.T) {
	cfg := validConfig()
	cfg.AutoSSO = true
	svc := NewService(StaticConfig(cfg), newFakeUsers())

	loc, ok, err := svc.AutoSSO(context.Background(), false, "/blog/post-1/")
	require.NoError(t, err)
	require.True(t, ok)
	u, err := url.Parse(loc)
	require.NoError(t, err)
	require.Equal(t, "https://site.example/blog/post-1", u.Query().Get("state"))

	loc, ok, err = svc.AutoSSO(context.Background(), false, "/")
	require.NoError(t, err)
	require.True(t, ok)
	u, _ = url.Parse(loc)
	require.Equal(t, "https://site.example", u.Query().Get("state"))

	_, ok, err = svc.AutoSSO(context.Background(), true, "/blog")
	require.NoError(t, err)
	require.False(t, ok)

	cfg.AutoSSO = false
	_, ok, err = NewService(StaticConfig(cfg), newFakeUsers()).AutoSSO(context.Background(), false, "/blog")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAutoSSO_IncompleteConfig(t *testing.T) {
	svc := NewService(StaticConfig(Config{AutoSSO: true}), newFakeUsers())
	_, ok, err := svc.AutoSSO(context.Background(), false, "/")
	require.ErrorIs(t, err, ErrConfigurationIncomplete)
	require.False(t, ok)
}
