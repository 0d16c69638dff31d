package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/oliulv/yc-eval-game/config"
	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/handler"
	"github.com/oliulv/yc-eval-game/pkg/llm"
	"github.com/oliulv/yc-eval-game/pkg/rabbitmq"
	"github.com/oliulv/yc-eval-game/repository"
	"github.com/oliulv/yc-eval-game/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	deps := buildServices(cfg)

	// The backfill consumer is optional, the HTTP API works without a broker.
	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn, backfill consumer disabled")
	} else {
		backfillConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, handler.BackfillHandler)
		go func() {
			if err := backfillConsumer.Consume(ctx, deps); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("Backfill consumer error")
			}
		}()
	}

	r := gin.Default()
	addHealth(r)
	addRoutes(r, handler.NewHandler(deps))

	httpServer := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := httpServer.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func buildServices(cfg *config.Config) handler.ServiceDependencies {
	gateway := llm.NewGatewayClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey)
	registry := llm.NewRegistry(gateway)

	var lister service.ModelLister
	if cfg.Gateway.APIKey != "" {
		lister = gateway
	}
	catalog := service.NewCatalog(lister, cfg.Models.AllowlistPrefixes, cfg.Models.RecommendedIDs)

	repo := repository.NewRepo(cfg.DB)
	transcription := service.NewTranscriptionService(
		repo,
		service.NewDownloader(cfg.YtDlp.Binary),
		service.NewWhisperTranscriber(cfg.OpenAI.APIKey),
		cfg.Storage,
		cfg.AudioBucket,
	)
	predictor := service.NewPredictionService(registry, repo)

	return handler.ServiceDependencies{
		Repo:          repo,
		Transcription: transcription,
		Catalog:       catalog,
		Predictor:     predictor,
		Stats:         service.NewStatsService(repo),
		Backfill:      service.NewBackfillService(repo, catalog, predictor),
	}
}

func addRoutes(r *gin.Engine, h *handler.Handler) {
	api := r.Group("/api")
	api.POST("/submit", h.Submit)
	api.GET("/videos", h.ListVideos)
	api.GET("/videos/:id", h.GetVideo)
	api.POST("/transcribe", h.Transcribe)
	api.POST("/predict", h.Predict)
	api.POST("/predict/reason", h.Reason)
	api.GET("/models", h.ListModels)
	api.GET("/stats", h.GetStats)
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
