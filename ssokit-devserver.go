package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	authhttp "github.com/PaulFidika/ssokit/adapters/http"
	"github.com/PaulFidika/ssokit/core"
	"github.com/PaulFidika/ssokit/metrics"
	"github.com/PaulFidika/ssokit/riverjobs"
	"github.com/PaulFidika/ssokit/session"
	pgstore "github.com/PaulFidika/ssokit/storage/postgres"
	redisstore "github.com/PaulFidika/ssokit/storage/redis"
	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type config struct {
	ListenAddr      string        `env:"SSOKIT_LISTEN_ADDR" envDefault:":8080"`
	DBURL           string        `env:"DATABASE_URL,required"`
	RedisURL        string        `env:"SSOKIT_REDIS_URL"`
	SessionSecret   string        `env:"SSOKIT_SESSION_SECRET,required"`
	SecureCookies   bool          `env:"SSOKIT_SECURE_COOKIES" envDefault:"true"`
	MigrateOnStart  bool          `env:"SSOKIT_MIGRATE_ON_START" envDefault:"true"`
	PurgeCron       string        `env:"SSOKIT_PURGE_CRON" envDefault:"*/15 * * * *"`
	TrustedProxies  []string      `env:"SSOKIT_TRUSTED_PROXIES" envSeparator:","`
	LogLevel        string        `env:"SSOKIT_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SSOKIT_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	root := &cobra.Command{
		Use:          "ssokit-devserver",
		Short:        "Run a site that signs visitors in through an OAuth2 authorization server",
		SilenceUsage: true,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the SSO routes, the session API and /metrics",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := setup()
				if err != nil {
					return err
				}
				return runServe(cmd.Context(), cfg, log)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the ssokit and River schema migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, log, err := setup()
				if err != nil {
					return err
				}
				pool, err := pgxpool.New(cmd.Context(), cfg.DBURL)
				if err != nil {
					return fmt.Errorf("connect postgres: %w", err)
				}
				defer pool.Close()
				return runMigrations(cmd.Context(), pool, log)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func setup() (*config, *logrus.Logger, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return nil, nil, err
	}
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("SSOKIT_LOG_LEVEL: %w", err)
	}
	log.SetLevel(lvl)
	return &cfg, log, nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger) error {
	if err := pgstore.Migrate(ctx, pool); err != nil {
		return err
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate: %w", err)
	}
	log.WithField("river_versions", len(res.Versions)).Info("migrations_applied")
	return nil
}

func runServe(ctx context.Context, cfg *config, log *logrus.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if cfg.MigrateOnStart {
		if err := runMigrations(ctx, pool, log); err != nil {
			return err
		}
	}

	pgSessions := pgstore.NewSessions(pool)
	var sessionStore session.Store = pgSessions
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("SSOKIT_REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		kv := redisstore.NewKV(rdb, "ssokit:")
		if err := kv.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		sessionStore = kv
	}

	workers := river.NewWorkers()
	riverjobs.RegisterWorkers(workers, pgSessions, log, core.LogListener{Log: log})
	jobs, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 10}},
		Workers: workers,
	})
	if err != nil {
		return fmt.Errorf("river client: %w", err)
	}
	if err := riverjobs.AddPurgeExpiredSessionsPeriodicJob(jobs, cfg.PurgeCron, true); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := core.NewService(core.EnvConfig{}, pgstore.NewUsers(pool)).
		WithLogger(log).
		WithMetrics(metrics.New(reg)).
		WithListener(riverjobs.NewQueueListener(jobs, log))
	if _, err := svc.Config(ctx); err != nil {
		log.WithError(err).Warn("sso_not_configured")
	}

	sessions, err := session.NewManager(sessionStore, session.Options{
		Secret: []byte(cfg.SessionSecret),
		Secure: cfg.SecureCookies,
	})
	if err != nil {
		return err
	}
	sessions.WithLogger(log)

	proxies, err := parsePrefixes(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	sso := authhttp.NewService(svc, sessions).WithLogger(log)
	if len(proxies) > 0 {
		sso.WithClientIPFunc(authhttp.ClientIPFromForwardedHeaders(proxies))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, sso.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Mount("/auth", sso.Handler())
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := sessions.Load(w, r).Current(r.Context())
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !ok {
			_, _ = fmt.Fprintln(w, "not signed in; visit /?auth=sso")
			return
		}
		_, _ = fmt.Fprintf(w, "signed in as user %d\n", uid)
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.ListenAddr).Info("devserver_listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := jobs.Start(gctx); err != nil {
			return fmt.Errorf("start river: %w", err)
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return jobs.Stop(stopCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func parsePrefixes(raw []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !strings.Contains(s, "/") {
			a, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
			}
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}
