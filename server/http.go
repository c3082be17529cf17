package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"media-library/config"
	"media-library/constant"
	jobHandler "media-library/handler"
	"media-library/pkg/lockfile"
	"media-library/pkg/rabbitmq"
	"media-library/repository"
	"media-library/service"
	"media-library/session"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(SetupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)
	locks := lockfile.New(cfg.Storage.LockDir, cfg.Storage.LockStaleAfter)
	sessions := session.NewFileStore(cfg.Storage.SessionDir, locks)

	var transcoder service.TranscodeRequester
	if conn != nil {
		transcoder = rabbitmq.NewPublisher(conn, cfg.Queue, rabbitmq.TranscodeQueue)
	}
	prober := service.FFProbe{}

	serviceDeps := jobHandler.ServiceDependencies{
		Upload:    service.NewUploadService(sessions, repo, cfg, transcoder, prober),
		Reconcile: service.NewReconcileService(repo, cfg, prober),
		Resolve:   service.NewResolveService(repo, cfg),
		Purge:     service.NewPurgeService(repo, cfg),
		Catalog:   repo,
	}

	// The external transcoding worker announces finished variants here.
	if conn != nil {
		variantConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, rabbitmq.VariantQueue, cfg.Server.Workers, jobHandler.VariantRegisteredHandler)
		go func() {
			if err := variantConsumer.Consume(ctx, serviceDeps); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("variant consumer error")
			}
		}()
	}

	// Periodic reconciliation audit.
	scheduler := cron.New()
	if cfg.Storage.ReconcileCron != "" {
		_, err := scheduler.AddFunc(cfg.Storage.ReconcileCron, func() {
			if _, err := serviceDeps.Reconcile.Analyze(ctx); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("scheduled reconciliation failed")
			}
		})
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("spec", cfg.Storage.ReconcileCron).Msg("invalid reconcile cron spec")
		} else {
			scheduler.Start()
			defer scheduler.Stop()
		}
	}

	r := gin.Default()
	addHealth(r)
	jobHandler.NewHTTP(serviceDeps, cfg).Register(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func SetupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
