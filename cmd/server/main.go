package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"filepanel/internal/api/middleware"
	"filepanel/internal/api/routes"
	"filepanel/internal/config"
	"filepanel/internal/files"
	"filepanel/internal/logging"
	"filepanel/internal/services"
	"filepanel/internal/store"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// Load configuration; a missing signing secret or port is fatal here.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.JSON, nil)

	// Open the store; it lives exactly as long as the process.
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	userSvc := services.NewUserService(st, cfg.Security.BcryptCost)
	sessionSvc := services.NewSessionService(st)
	authSvc := services.NewAuthService(cfg, userSvc, sessionSvc)

	fileManager, err := files.NewDiskManager(cfg.Files.Root)
	if err != nil {
		log.Fatalf("Failed to prepare files root: %v", err)
	}

	hasUsers, err := userSvc.HasUsers()
	if err != nil {
		log.Fatalf("Failed to check setup state: %v", err)
	}
	if !hasUsers {
		logger.Info("no users exist yet, first signup will create the admin account")
	}

	// Set Gin mode
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	var limiter *middleware.RateLimiter
	if cfg.Security.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.Security.RateLimit.RequestsPerMinute)
		defer limiter.Close()
	}

	r := gin.Default()
	routes.SetupRoutes(r, routes.Deps{
		Cfg:      cfg,
		Users:    userSvc,
		Sessions: sessionSvc,
		Auth:     authSvc,
		Files:    fileManager,
		Limiter:  limiter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The sweeper runs for the life of the process and stops with it.
	go sessionSvc.RunSweeper(ctx, cfg.Security.SweepInterval, logger)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	go func() {
		logger.Info("starting filepanel server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
