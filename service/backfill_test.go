package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/oliulv/yc-eval-game/dto"
	"github.com/oliulv/yc-eval-game/entities"
	"github.com/oliulv/yc-eval-game/pkg/llm"
)

func backfillCatalog() Catalog {
	return NewCatalog(nil, []string{"openai/", "anthropic/"}, []string{
		"openai/gpt-4o-mini",
		"anthropic/claude-haiku-4.5",
	})
}

func TestBackfillSkipsExistingPredictions(t *testing.T) {
	transcript := "a pitch"
	videoID := uuid.New()
	repo := &fakeRepo{
		findByIDFn: func(id uuid.UUID) (*entities.Video, error) {
			return &entities.Video{ID: videoID, Transcript: &transcript, Accepted: true}, nil
		},
		hasPredictionFn: func(id uuid.UUID, modelName string) (bool, error) {
			return modelName == "openai/gpt-4o-mini", nil
		},
	}
	completer := &fakeCompleter{
		respond: func(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
			return "YES", nil
		},
	}
	svc := NewBackfillService(repo, backfillCatalog(), NewPredictionService(llm.NewRegistry(completer), repo))

	if err := svc.ProcessVideo(context.Background(), dto.BackfillMessage{VideoID: videoID}); err != nil {
		t.Fatalf("ProcessVideo: %v", err)
	}

	stored := repo.predictions()
	if len(stored) != 1 {
		t.Fatalf("stored %d predictions, want 1 (other model already covered)", len(stored))
	}
	if stored[0].ModelName != "anthropic/claude-haiku-4.5" {
		t.Fatalf("stored wrong model: %s", stored[0].ModelName)
	}
}

func TestBackfillMissingVideoIsNotAnError(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewBackfillService(repo, backfillCatalog(), nil)

	// a deleted video must not requeue the message forever
	if err := svc.ProcessVideo(context.Background(), dto.BackfillMessage{VideoID: uuid.New()}); err != nil {
		t.Fatalf("ProcessVideo: %v", err)
	}
}

func TestBackfillSkipsUntranscribedVideo(t *testing.T) {
	videoID := uuid.New()
	repo := &fakeRepo{
		findByIDFn: func(id uuid.UUID) (*entities.Video, error) {
			return &entities.Video{ID: videoID}, nil
		},
	}
	svc := NewBackfillService(repo, backfillCatalog(), nil)

	if err := svc.ProcessVideo(context.Background(), dto.BackfillMessage{VideoID: videoID}); err != nil {
		t.Fatalf("ProcessVideo: %v", err)
	}
	if len(repo.predictions()) != 0 {
		t.Fatalf("untranscribed video must not get predictions")
	}
}

func TestBackfillPredictionFailureDoesNotAbort(t *testing.T) {
	transcript := "a pitch"
	videoID := uuid.New()
	repo := &fakeRepo{
		findByIDFn: func(id uuid.UUID) (*entities.Video, error) {
			return &entities.Video{ID: videoID, Transcript: &transcript}, nil
		},
	}
	completer := &fakeCompleter{
		respond: func(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
			if strings.HasPrefix(model, "openai/") {
				return "", errors.New("rate limited")
			}
			return "NO", nil
		},
	}
	svc := NewBackfillService(repo, backfillCatalog(), NewPredictionService(llm.NewRegistry(completer), repo))

	if err := svc.ProcessVideo(context.Background(), dto.BackfillMessage{VideoID: videoID}); err != nil {
		t.Fatalf("one model failing must not fail the message: %v", err)
	}
	stored := repo.predictions()
	if len(stored) != 1 || stored[0].ModelName != "anthropic/claude-haiku-4.5" {
		t.Fatalf("stored = %+v", stored)
	}
}
