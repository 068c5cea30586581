package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"library-server/internal/app"
	"library-server/internal/config"
	apphttp "library-server/internal/http"
	"library-server/internal/overdue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer deps.Close()

	sweeper := overdue.NewSweeper(overdue.Config{
		Interval: cfg.Overdue.Interval,
		Logger:   logger,
	}, deps.Borrows.SweepOverdue)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatalf("start overdue sweeper: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Options{
		Users:         deps.Users,
		Books:         deps.Books,
		Borrows:       deps.Borrows,
		Notifications: deps.Notifications,
		Logger:        logger,
		CORSOrigins:   cfg.CORS.Origins,
		UploadsDir:    deps.UploadsDir,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	sweeper.Shutdown()

	logger.Info("bye")
}
