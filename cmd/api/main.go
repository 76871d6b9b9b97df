package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"brandkit/internal/bootstrap"
	"brandkit/internal/http/handlers"
	httpapi "brandkit/internal/http/httpapi"
	"brandkit/internal/infra"
	"brandkit/internal/infra/geoip"
	"brandkit/internal/infra/oidc"
	"brandkit/internal/middleware"
)

func main() {
	infra.LoadEnvFiles()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: bootstrap failed")
	}
	defer deps.Close()

	countries, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("api: geoip disabled")
	}
	defer countries.Close()

	app := handlers.NewApp(deps.Service, deps.Registry, logger)
	app.Ping = deps.Pool.Ping

	staticDir := ""
	if deps.FileStore != nil {
		staticDir = deps.FileStore.BasePath()
	}
	var idTokens middleware.IDTokenVerifier
	if cfg.OIDCClientID != "" {
		idTokens = oidc.NewVerifier(cfg.OIDCIssuer, cfg.OIDCClientID, nil)
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		IDTokens:        idTokens,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   countries.Lookup(),
		StaticDir:       staticDir,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Strs("models", deps.Registry.IDs()).Msg("api: listening")
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("api: server stopped with error")
		return
	}
	logger.Info().Msg("api: server stopped")
}
