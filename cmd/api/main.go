package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/gomail.v2"

	_ "github.com/acadperu/sigea-api/api/swagger"
	"github.com/acadperu/sigea-api/internal/repository"
	"github.com/acadperu/sigea-api/internal/router"
	"github.com/acadperu/sigea-api/internal/service"
	"github.com/acadperu/sigea-api/pkg/cache"
	"github.com/acadperu/sigea-api/pkg/config"
	"github.com/acadperu/sigea-api/pkg/database"
	"github.com/acadperu/sigea-api/pkg/logger"
)

// @title SIGEA API
// @version 1.0.0
// @description Sistema de gestión de evaluaciones académicas
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	schemeRepo := repository.NewGradeSchemeRepository(db)
	historyRepo := repository.NewGradeHistoryRepository(db)
	resultCache := repository.NewResultCache(redisClient, cfg.Grading.CacheTTL)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	catalogService := service.NewCatalogService(courseRepo, enrollmentRepo, validate, logr)
	schemeService := service.NewGradeSchemeService(schemeRepo, validate, logr)

	dialer := gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password)
	notificationService := service.NewNotificationService(userRepo, dialer, service.NotificationConfig{
		Enabled:    cfg.Notifications.Enabled,
		From:       cfg.SMTP.From,
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
	}, logr)

	gradeService := service.NewGradeService(service.GradeServiceDeps{
		Grades:      gradeRepo,
		History:     historyRepo,
		Courses:     courseRepo,
		Enrollments: enrollmentRepo,
		Schemes:     schemeService,
		Cache:       resultCache,
		Notifier:    notificationService,
		Audit:       userRepo,
		Validator:   validate,
		Logger:      logr,
	})
	reportService := service.NewReportService(courseRepo, enrollmentRepo, gradeRepo, schemeService, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(ctx)
	defer notificationService.Stop()

	engine := router.New(cfg, logr, router.Services{
		Auth:    authService,
		Catalog: catalogService,
		Schemes: schemeService,
		Grades:  gradeService,
		Reports: reportService,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
