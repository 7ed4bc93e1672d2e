// @title Tag Set API
// @version 1.0
// @description Tag field values of objects, bounded by per-field allow-lists.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"tagset/config"
	_ "tagset/docs"
	"tagset/internal/adapters/auth"
	httpdelivery "tagset/internal/delivery/http"
	"tagset/internal/delivery/http/controllers"
	"tagset/internal/repository/postgres"
	"tagset/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	logger := config.NewLogger()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	db, err := openDB(cfg.DBUrl)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	tagRepo := postgres.NewTagRepository(db)
	objectTagRepo := postgres.NewObjectTagRepository(db)
	tagSetService := services.NewTagSetService(tagRepo, objectTagRepo, logger, cfg.RequestTimeout)
	tagSetController := controllers.NewTagSetController(logger, tagSetService)

	router := httpdelivery.NewRouter(tagSetController, auth.NewJWT(cfg.JWTSecret), logger)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpdelivery.NewHandler(router, logger, cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("server stopped")
}

func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}
