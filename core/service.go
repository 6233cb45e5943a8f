package core

import (
	"context"
	"fmt"

	"github.com/PaulFidika/ssokit/metrics"
	oidckit "github.com/PaulFidika/ssokit/oidc"
	"github.com/sirupsen/logrus"
)

// Service runs the single sign-on flow. Construct it with NewService and the
// With* builders; it holds no per-request state and is safe for concurrent use.
type Service struct {
	config    ConfigProvider
	users     UserStore
	clients   *oidckit.Clients
	listeners []LifecycleListener
	filters   []RedirectFilter
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
}

func NewService(config ConfigProvider, users UserStore) *Service {
	return &Service{
		config:  config,
		users:   users,
		clients: oidckit.NewClients(oidckit.HTTPOptions{}),
		log:     logrus.StandardLogger(),
	}
}

// WithLogger sets the logger used for flow diagnostics.
func (s *Service) WithLogger(l logrus.FieldLogger) *Service {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service { s.metrics = m; return s }

// WithListener registers a lifecycle listener. Listeners fire in registration order.
func (s *Service) WithListener(l LifecycleListener) *Service {
	s.listeners = append(s.listeners, l)
	return s
}

// WithRedirectFilter appends a filter applied to the default post-login target.
func (s *Service) WithRedirectFilter(f RedirectFilter) *Service {
	s.filters = append(s.filters, f)
	return s
}

// WithHTTPClients replaces the outbound client cache (timeouts, TLS posture).
func (s *Service) WithHTTPClients(c *oidckit.Clients) *Service {
	if c != nil {
		s.clients = c
	}
	return s
}

// Config loads and validates the configuration snapshot for one request.
func (s *Service) Config(ctx context.Context) (Config, error) {
	if s.config == nil {
		return Config{}, newFlowError(ErrConfigurationIncomplete, "", fmt.Errorf("no configuration provider"))
	}
	raw, err := s.config.Load(ctx)
	if err != nil {
		return Config{}, newFlowError(ErrConfigurationIncomplete, "", err)
	}
	return raw.Validate()
}

func (s *Service) relyingParty(cfg Config) (*oidckit.RelyingParty, error) {
	rp, err := oidckit.New(oidckit.Endpoints{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AuthURL:      cfg.ServerURL,
		TokenURL:     cfg.TokenEndpoint,
		UserInfoURL:  cfg.UserInfoEndpoint,
		RedirectURL:  cfg.CallbackURL,
	}, s.clients.Get(cfg.InsecureSkipVerify))
	if err != nil {
		return nil, newFlowError(ErrConfigurationIncomplete, "", fmt.Errorf("relying party: %w", err))
	}
	return rp, nil
}

func (s *Service) reconciler() *Reconciler {
	return NewReconciler(s.users, s.listeners, s.log, s.metrics)
}
