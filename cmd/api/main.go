package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/gastromap/discovery-api/internal/auth"
	"github.com/gastromap/discovery-api/internal/config"
	"github.com/gastromap/discovery-api/internal/database"
	"github.com/gastromap/discovery-api/internal/handler"
	"github.com/gastromap/discovery-api/internal/logging"
	middlewarepkg "github.com/gastromap/discovery-api/internal/middleware"
	"github.com/gastromap/discovery-api/internal/repository"
	"github.com/gastromap/discovery-api/internal/router"
	"github.com/gastromap/discovery-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("discovery-api", "development")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New("discovery-api", cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL, cfg.QueryTimeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	usersRepo := repository.NewPGXUsersRepository(pool)
	establishmentsRepo := repository.NewPGXEstablishmentsRepository(pool)

	authService := service.NewAuthService(usersRepo, jwtManager)
	userService := service.NewUserService(usersRepo)
	searchService := service.NewSearchService(establishmentsRepo)
	establishmentsService := service.NewEstablishmentsService(establishmentsRepo)

	handlers := router.Handlers{
		Auth:           handler.NewAuthHandler(authService),
		Users:          handler.NewUserAdminHandler(userService),
		Search:         handler.NewSearchHandler(searchService),
		Establishments: handler.NewEstablishmentsHandler(establishmentsService),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(logger))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, handlers)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + cfg.Port)
	}()
	logger.Info().Str("port", cfg.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
