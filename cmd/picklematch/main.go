package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/csbedford/picklematch/internal/adapter/kratos"
	"github.com/csbedford/picklematch/internal/adapter/local"
	"github.com/csbedford/picklematch/internal/authsync"
	"github.com/csbedford/picklematch/internal/config"
	"github.com/csbedford/picklematch/internal/hub"
	"github.com/csbedford/picklematch/internal/identity"
	"github.com/csbedford/picklematch/internal/logger"
	"github.com/csbedford/picklematch/internal/policy"
	"github.com/csbedford/picklematch/internal/repository"
	"github.com/csbedford/picklematch/internal/telemetry"
	"github.com/csbedford/picklematch/internal/tokens"
	transporthttp "github.com/csbedford/picklematch/internal/transport/http"
	"github.com/csbedford/picklematch/internal/transport/ws"
)

func main() {
	if err := run(); err != nil {
		slog.Error("picklematch exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	otelShutdown, err := telemetry.InitProvider(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRatio:  cfg.TraceSampleRatio,
	})
	if err != nil {
		log.WarnContext(ctx, "failed to initialize OpenTelemetry, continuing without tracing", "error", err)
		otelShutdown = func(context.Context) error { return nil }
		cfg.OTLPEndpoint = ""
	}

	log.InfoContext(ctx, "configuration loaded",
		"identity_provider", cfg.IdentityProvider,
		"http_port", cfg.HTTPPort,
		"database", cfg.DatabaseDSN)

	store, err := repository.NewSQLiteStore(cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	deps := transporthttp.Deps{
		ServiceName: cfg.ServiceName,
		Tracing:     cfg.OTLPEndpoint != "",
	}

	var sessions identity.SessionProvider
	switch cfg.IdentityProvider {
	case config.ProviderKratos:
		gateway := kratos.NewGateway(kratos.Config{
			PublicURL:    cfg.KratosURL,
			SessionToken: cfg.KratosSessionToken,
			Timeout:      cfg.KratosTimeout,
		}, log)
		defer gateway.Close()
		sessions = gateway
		deps.Events = gateway
		deps.WebhookSecret = cfg.WebhookSecret

	default:
		provider := local.NewProvider(store, tokens.NewJWTIssuer(tokens.JWTConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			TTL:      cfg.SessionTTL,
		}), log)
		defer provider.Close()
		if err := provider.Seed(ctx, local.AdminSeed{Email: cfg.AdminEmail, Password: cfg.AdminPassword}); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		sessions = provider
		deps.Accounts = provider
	}

	syncer := authsync.New(identity.Compose(sessions, store),
		authsync.WithLogger(log),
		authsync.WithLookupTimeout(cfg.LookupTimeout),
	)

	nav, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		return err
	}

	connections := hub.NewHub(log)
	wsServer := ws.NewServer(ws.Config{
		PingInterval:   cfg.PingInterval,
		WriteTimeout:   cfg.WriteTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		MaxMessageSize: cfg.MaxMessageSize,
	}, connections, syncer.Facade(), log)

	deps.State = syncer.Facade()
	deps.Nav = nav
	deps.WS = wsServer
	e := transporthttp.NewServer(deps, log)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return syncer.Run(gCtx)
	})

	g.Go(func() error {
		connections.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		return wsServer.Stream(gCtx)
	})

	address := fmt.Sprintf(":%d", cfg.HTTPPort)
	g.Go(func() error {
		log.InfoContext(gCtx, "starting http server", "address", address)
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return otelShutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exited properly")
	return nil
}
