package core

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the relying-party configuration snapshot used for one request.
type Config struct {
	ClientID     string
	ClientSecret string
	// ServerURL is the authorization endpoint base; the authorize query is appended to it.
	ServerURL        string
	TokenEndpoint    string
	UserInfoEndpoint string

	RedirectToDashboard bool
	AutoSSO             bool

	// SiteURL is this application's public root ("home").
	SiteURL string
	// DashboardURL is used as the default post-login target when RedirectToDashboard is set.
	// Empty means SiteURL + "/dashboard".
	DashboardURL string
	// CallbackURL is the fixed redirect_uri registered with the authorization server.
	// Empty means SiteURL + "/?auth=sso".
	CallbackURL string

	// InsecureSkipVerify disables TLS certificate verification on the token and
	// userinfo calls. Off unless explicitly enabled.
	InsecureSkipVerify bool

	// AllowedRedirectHosts extends the set of hosts (besides SiteURL's) that the
	// final post-login redirect may target.
	AllowedRedirectHosts []string
}

// DefaultConfig mirrors an unconfigured installation: every endpoint and credential empty.
func DefaultConfig() Config { return Config{} }

// Validate fills derived defaults and reports missing settings as ErrConfigurationIncomplete.
func (c Config) Validate() (Config, error) {
	c.SiteURL = strings.TrimRight(strings.TrimSpace(c.SiteURL), "/")
	if c.CallbackURL == "" && c.SiteURL != "" {
		c.CallbackURL = c.SiteURL + "/?auth=sso"
	}
	if c.DashboardURL == "" && c.SiteURL != "" {
		c.DashboardURL = c.SiteURL + "/dashboard"
	}

	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("client_id", c.ClientID)
	check("client_secret", c.ClientSecret)
	check("server_url", c.ServerURL)
	check("server_token_endpoint", c.TokenEndpoint)
	check("user_info_endpoint", c.UserInfoEndpoint)
	check("site_url", c.SiteURL)
	if len(missing) > 0 {
		return c, newFlowError(ErrConfigurationIncomplete, "", fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}

	for name, raw := range map[string]string{
		"server_url":            c.ServerURL,
		"server_token_endpoint": c.TokenEndpoint,
		"user_info_endpoint":    c.UserInfoEndpoint,
		"site_url":              c.SiteURL,
		"callback_url":          c.CallbackURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return c, newFlowError(ErrConfigurationIncomplete, "", fmt.Errorf("%s is not an absolute URL", name))
		}
	}
	return c, nil
}

// ConfigProvider supplies the configuration snapshot for a request.
type ConfigProvider interface {
	Load(ctx context.Context) (Config, error)
}

// StaticConfig serves the same configuration to every request.
type StaticConfig Config

func (c StaticConfig) Load(context.Context) (Config, error) { return Config(c), nil }

type configEnv struct {
	ClientID             string   `env:"SSO_CLIENT_ID"`
	ClientSecret         string   `env:"SSO_CLIENT_SECRET"`
	ServerURL            string   `env:"SSO_SERVER_URL"`
	TokenEndpoint        string   `env:"SSO_SERVER_TOKEN_ENDPOINT"`
	UserInfoEndpoint     string   `env:"SSO_USER_INFO_ENDPOINT"`
	RedirectToDashboard  bool     `env:"SSO_REDIRECT_TO_DASHBOARD" envDefault:"false"`
	AutoSSO              bool     `env:"SSO_AUTO_SSO" envDefault:"false"`
	SiteURL              string   `env:"SSO_SITE_URL"`
	DashboardURL         string   `env:"SSO_DASHBOARD_URL"`
	CallbackURL          string   `env:"SSO_CALLBACK_URL"`
	InsecureSkipVerify   bool     `env:"SSO_INSECURE_SKIP_VERIFY" envDefault:"false"`
	AllowedRedirectHosts []string `env:"SSO_ALLOWED_REDIRECT_HOSTS" envSeparator:","`
}

// EnvConfig reads the configuration from SSO_* environment variables on every Load,
// so operators can change settings without rebuilding the service.
type EnvConfig struct{}

func (EnvConfig) Load(context.Context) (Config, error) {
	var raw configEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	hosts := make([]string, 0, len(raw.AllowedRedirectHosts))
	for _, h := range raw.AllowedRedirectHosts {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return Config{
		ClientID:             raw.ClientID,
		ClientSecret:         raw.ClientSecret,
		ServerURL:            raw.ServerURL,
		TokenEndpoint:        raw.TokenEndpoint,
		UserInfoEndpoint:     raw.UserInfoEndpoint,
		RedirectToDashboard:  raw.RedirectToDashboard,
		AutoSSO:              raw.AutoSSO,
		SiteURL:              raw.SiteURL,
		DashboardURL:         raw.DashboardURL,
		CallbackURL:          raw.CallbackURL,
		InsecureSkipVerify:   raw.InsecureSkipVerify,
		AllowedRedirectHosts: hosts,
	}, nil
}
