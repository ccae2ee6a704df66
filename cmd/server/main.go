package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/palisade-admin/palisade/internal/api"
	"github.com/palisade-admin/palisade/internal/app"
	"github.com/palisade-admin/palisade/internal/app/maintenance"
	"github.com/palisade-admin/palisade/internal/auth"
	"github.com/palisade-admin/palisade/internal/database"
	"github.com/palisade-admin/palisade/internal/rbac"
	"github.com/palisade-admin/palisade/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "palisade: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig(".")
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.WithModule("server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := database.MigrateAndSeed(db, database.SeedOptions{
		AdminUsername: cfg.Auth.Admin.Username,
		AdminPassword: cfg.Auth.Admin.Password,
	}); err != nil {
		return err
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:         cfg.Auth.JWT.Secret,
		Issuer:         cfg.Auth.JWT.Issuer,
		AccessTokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("jwt service: %w", err)
	}

	cacheTTL := cfg.RBAC.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = cfg.Auth.JWT.TTL
	}
	resolver, err := rbac.NewResolver(db, rbac.Config{
		CacheSize: cfg.RBAC.CacheSize,
		CacheTTL:  cacheTTL,
	})
	if err != nil {
		return fmt.Errorf("permission resolver: %w", err)
	}

	router, err := api.NewRouter(db, jwtService, resolver)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	var cleaner *maintenance.Cleaner
	if cfg.Maintenance.Enabled {
		cleaner = maintenance.NewCleaner(db,
			maintenance.WithSchedule(cfg.Maintenance.Schedule),
			maintenance.WithRetentionDays(cfg.Maintenance.RetentionDays))
		if err := cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if cleaner != nil {
		select {
		case <-cleaner.Stop().Done():
		case <-shutdownCtx.Done():
		}
	}

	log.Info("stopped")
	return nil
}

func databaseConfig(cfg *app.Config) database.Config {
	out := database.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		DSN:    cfg.Database.DSN,
	}

	var host app.DBAuthConfig
	switch cfg.Database.Driver {
	case "postgres", "postgresql":
		host = cfg.Database.Postgres
	case "mysql", "mariadb":
		host = cfg.Database.MySQL
	}
	out.Host = host.Host
	out.Port = host.Port
	out.Name = host.Database
	out.User = host.Username
	out.Password = host.Password
	return out
}
