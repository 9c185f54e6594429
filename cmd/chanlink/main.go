package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/chanlink/internal/config"
	"github.com/xxxsen/chanlink/internal/db"
	"github.com/xxxsen/chanlink/internal/delivery"
	"github.com/xxxsen/chanlink/internal/handler"
	"github.com/xxxsen/chanlink/internal/job"
	"github.com/xxxsen/chanlink/internal/limiter"
	"github.com/xxxsen/chanlink/internal/middleware"
	"github.com/xxxsen/chanlink/internal/pkg/verifycode"
	"github.com/xxxsen/chanlink/internal/repo"
	"github.com/xxxsen/chanlink/internal/schedule"
	"github.com/xxxsen/chanlink/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "chanlink",
		Short: "chat channel linking and password recovery server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run chanlink server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sqlx.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath), zap.String("db_driver", cfg.Database.Driver))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func runServer(cfg *config.Config, conn *sqlx.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("delivery", cfg.Delivery.Type),
		zap.String("limiter", cfg.Limiter.Type),
	)

	userRepo := repo.NewUserRepo(conn)
	codeRepo := repo.NewChannelCodeRepo(conn)

	sender, err := delivery.New(cfg.Delivery)
	if err != nil {
		return fmt.Errorf("init delivery: %w", err)
	}
	attempts, err := limiter.New(cfg.Limiter)
	if err != nil {
		return fmt.Errorf("init limiter: %w", err)
	}
	var routeLimiter limiter.Limiter
	if cfg.Limiter.HTTPMaxAttempts > 0 {
		routeCfg := cfg.Limiter
		routeCfg.MaxAttempts = cfg.Limiter.HTTPMaxAttempts
		if routeLimiter, err = limiter.New(routeCfg); err != nil {
			return fmt.Errorf("init route limiter: %w", err)
		}
	}

	hasher, err := verifycode.NewHasher([]byte(cfg.CodeSecret))
	if err != nil {
		return fmt.Errorf("init code hasher: %w", err)
	}

	authService := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
	channelService := service.NewChannelService(userRepo, codeRepo, sender, hasher, service.WithChannelLimiter(attempts))

	deps := handler.RouterDeps{
		Auth:      handler.NewAuthHandler(authService),
		Channels:  handler.NewChannelHandler(channelService),
		Telegram:  handler.NewTelegramHandler(channelService, sender, cfg.TelegramWebhookSecret),
		JWTSecret: []byte(cfg.JWTSecret),
		BotAPIKey: cfg.BotAPIKey,
		Limiter:   routeLimiter,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Cleanup.Enabled {
		scheduler := schedule.NewCronScheduler(schedule.WithJobTimeout(5 * time.Minute))
		cleanup := job.NewChannelCodeCleanupJob(codeRepo, time.Duration(cfg.Cleanup.RetentionHours)*time.Hour)
		if err := scheduler.AddJob(cleanup, cfg.Cleanup.Spec); err != nil {
			return err
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
