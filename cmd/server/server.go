package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/course-portal/api"
	"github.com/irsalhamdi/course-portal/config"
	"github.com/irsalhamdi/course-portal/core/academy"
	"github.com/irsalhamdi/course-portal/core/auth"
	"github.com/irsalhamdi/course-portal/database"
	"github.com/irsalhamdi/course-portal/metrics"
	"github.com/irsalhamdi/course-portal/rate"
	"github.com/irsalhamdi/course-portal/store"
	"github.com/irsalhamdi/course-portal/store/memstore"
	"github.com/irsalhamdi/course-portal/store/pgstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := Run(log); err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			return
		}
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	const prefix = "PORTAL"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	logger.Info("starting server")
	defer logger.Info("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("rendering config: %w", err)
	}
	logger.WithField("config", out).Info("configuration")

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	st, closeStore, err := openStore(cfg.DB, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := academy.New(academy.Config{
		Store:          st,
		Log:            logger,
		Metrics:        metrics.New(reg),
		CapabilityCost: cfg.Capability.Cost,
	})

	var limiter *rate.Limiter
	if cfg.Rate.Enabled {
		limiter = rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.Every, cfg.Rate.Expiry)
		defer limiter.Stop()
	}

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:  cfg.Web.CorsOrigin,
		Log:         logger,
		Service:     svc,
		Verifier:    verifier,
		Limiter:     limiter,
		Gatherer:    reg,
		MetricsPath: cfg.Web.MetricsPath,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}

func openStore(cfg config.DB, logger *logrus.Logger) (store.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("using the in-memory store, state is lost on restart")
		return memstore.New(), func() {}, nil

	case "postgres":
		db, err := database.Open(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
		}

		if err := database.StatusCheck(context.Background(), db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("database not reachable: %w", err)
		}

		if cfg.Migrate {
			if err := database.Migrate(db); err != nil {
				db.Close()
				return nil, nil, err
			}
		}

		return pgstore.New(db, logger), func() { db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

var errNoIdentitySource = errors.New("no identity source: set an oidc issuer or a trusted identity header")

func newVerifier(cfg config.Auth) (auth.Verifier, error) {
	if cfg.OIDCIssuer == "" {
		if cfg.IdentityHeader == "" {
			return nil, errNoIdentitySource
		}
		return auth.Header(cfg.IdentityHeader), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DiscoveryTimeout)
	defer cancel()

	v, err := auth.NewOIDC(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to set up oidc: %w", err)
	}
	return v, nil
}
