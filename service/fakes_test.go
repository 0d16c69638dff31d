package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oliulv/yc-eval-game/entities"
	"github.com/oliulv/yc-eval-game/pkg/llm"
	"github.com/oliulv/yc-eval-game/repository"
)

// fakeRepo satisfies repository.VideoRepository with per-method hooks. Tests
// set only the hooks they exercise; an unset hook behaves like an empty store.
type fakeRepo struct {
	mu sync.Mutex

	findByIDFn          func(id uuid.UUID) (*entities.Video, error)
	findByYoutubeIDFn   func(youtubeID string) (*entities.Video, error)
	createVideoFn       func(video *entities.Video) error
	insertColumnsFn     func(columns map[string]interface{}) error
	updateByYoutubeIDFn func(youtubeID string, updates map[string]interface{}) error
	insertPredictionFn  func(prediction *entities.ModelPrediction) error
	hasPredictionFn     func(videoID uuid.UUID, modelName string) (bool, error)
	listFactsFn         func() ([]repository.PredictionFact, error)

	insertedPredictions []entities.ModelPrediction
	updates             []map[string]interface{}
	insertedColumns     []map[string]interface{}
}

func (f *fakeRepo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return callback(ctx)
}

func (f *fakeRepo) GetDB() *gorm.DB { return nil }

func (f *fakeRepo) FindVideoByID(ctx context.Context, id uuid.UUID) (*entities.Video, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(id)
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) FindVideoByYoutubeID(ctx context.Context, youtubeID string) (*entities.Video, error) {
	if f.findByYoutubeIDFn != nil {
		return f.findByYoutubeIDFn(youtubeID)
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRepo) CreateVideo(ctx context.Context, video *entities.Video) error {
	if f.createVideoFn != nil {
		return f.createVideoFn(video)
	}
	return nil
}

func (f *fakeRepo) InsertVideoColumns(ctx context.Context, columns map[string]interface{}) error {
	f.mu.Lock()
	f.insertedColumns = append(f.insertedColumns, columns)
	f.mu.Unlock()
	if f.insertColumnsFn != nil {
		return f.insertColumnsFn(columns)
	}
	return nil
}

func (f *fakeRepo) UpdateVideoByYoutubeID(ctx context.Context, youtubeID string, updates map[string]interface{}) error {
	f.mu.Lock()
	f.updates = append(f.updates, updates)
	f.mu.Unlock()
	if f.updateByYoutubeIDFn != nil {
		return f.updateByYoutubeIDFn(youtubeID, updates)
	}
	return nil
}

func (f *fakeRepo) ListVideos(ctx context.Context, page, limit int) ([]entities.Video, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepo) ListTranscribedVideos(ctx context.Context) ([]entities.Video, error) {
	return nil, nil
}

func (f *fakeRepo) InsertPrediction(ctx context.Context, prediction *entities.ModelPrediction) error {
	if f.insertPredictionFn != nil {
		if err := f.insertPredictionFn(prediction); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.insertedPredictions = append(f.insertedPredictions, *prediction)
	f.mu.Unlock()
	return nil
}

func (f *fakeRepo) HasPrediction(ctx context.Context, videoID uuid.UUID, modelName string) (bool, error) {
	if f.hasPredictionFn != nil {
		return f.hasPredictionFn(videoID, modelName)
	}
	return false, nil
}

func (f *fakeRepo) ListPredictionFacts(ctx context.Context) ([]repository.PredictionFact, error) {
	if f.listFactsFn != nil {
		return f.listFactsFn()
	}
	return nil, nil
}

func (f *fakeRepo) predictions() []entities.ModelPrediction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entities.ModelPrediction, len(f.insertedPredictions))
	copy(out, f.insertedPredictions)
	return out
}

// fakeCompleter scripts chat-completion responses per model id.
type fakeCompleter struct {
	mu    sync.Mutex
	calls []string

	respond func(ctx context.Context, model, prompt string, opts llm.Options) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, model string, prompt string, opts llm.Options) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	f.mu.Unlock()
	return f.respond(ctx, model, prompt, opts)
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
