package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oliulv/yc-eval-game/config"
	"github.com/oliulv/yc-eval-game/dto"
	"github.com/oliulv/yc-eval-game/pkg/rabbitmq"
	"github.com/oliulv/yc-eval-game/repository"
)

// backfill enqueues one message per transcribed video so the consumer can
// fill in any missing recommended-model predictions. Safe to run repeatedly,
// the consumer skips model/video pairs that already have a row.
func backfill(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "enqueue prediction backfill for all transcribed videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			ctx := logger.WithContext(context.Background())

			conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
			if err != nil {
				return err
			}
			defer conn.Close()

			repo := repository.NewRepo(cfg.DB)
			videos, err := repo.ListTranscribedVideos(ctx)
			if err != nil {
				return err
			}

			published := 0
			for _, video := range videos {
				message := dto.BackfillMessage{VideoID: video.ID}
				if err := rabbitmq.PublishBackfillMessage(ctx, conn, cfg.Queue.Kind, message); err != nil {
					logger.Error().Err(err).Str("video_id", video.ID.String()).Msg("failed to publish backfill message")
					continue
				}
				published++
			}

			logger.Info().Int("videos", len(videos)).Int("published", published).Msg("backfill enqueued")
			return nil
		},
	}
}
