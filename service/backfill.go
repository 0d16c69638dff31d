package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/oliulv/yc-eval-game/dto"
	"github.com/oliulv/yc-eval-game/entities"
	"github.com/oliulv/yc-eval-game/repository"
)

// BackfillService fills in missing recommended-model predictions for one
// video at a time. Idempotent: (video, model) pairs that already have a row
// are skipped, so replaying a message is harmless.
type BackfillService interface {
	ProcessVideo(ctx context.Context, message dto.BackfillMessage) error
}

type backfillService struct {
	repo      repository.VideoRepository
	catalog   Catalog
	predictor PredictionService
}

func NewBackfillService(repo repository.VideoRepository, catalog Catalog, predictor PredictionService) BackfillService {
	return &backfillService{
		repo:      repo,
		catalog:   catalog,
		predictor: predictor,
	}
}

func (s *backfillService) ProcessVideo(ctx context.Context, message dto.BackfillMessage) error {
	log := zerolog.Ctx(ctx)

	video, err := s.repo.FindVideoByID(ctx, message.VideoID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("video_id", message.VideoID.String()).Msg("backfill target no longer exists")
		return nil
	}
	if err != nil {
		return err
	}

	if video.Transcript == nil || *video.Transcript == "" {
		log.Info().Str("video_id", video.ID.String()).Msg("skipping backfill, no transcript")
		return nil
	}

	recommended, err := s.catalog.Recommended(ctx)
	if err != nil {
		return err
	}

	var inserted, skipped, failed int
	for _, model := range recommended {
		exists, err := s.repo.HasPrediction(ctx, video.ID, model.ID)
		if err != nil {
			return err
		}
		if exists {
			skipped++
			continue
		}

		prediction, err := s.predictor.Predict(ctx, model, *video.Transcript, PredictOptions{})
		if err != nil {
			log.Error().Err(err).Str("video_id", video.ID.String()).Str("model", model.ID).Msg("backfill prediction failed")
			failed++
			continue
		}

		if err := s.repo.InsertPrediction(ctx, &entities.ModelPrediction{
			VideoID:        video.ID,
			ModelName:      model.ID,
			Prediction:     prediction.Label,
			ResponseTimeMs: prediction.ResponseTimeMs,
		}); err != nil {
			log.Error().Err(err).Str("video_id", video.ID.String()).Str("model", model.ID).Msg("failed to store backfill prediction")
			failed++
			continue
		}
		inserted++
	}

	log.Info().
		Str("video_id", video.ID.String()).
		Int("inserted", inserted).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("backfill finished for video")

	return nil
}
