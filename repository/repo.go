package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/entities"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// PredictionFact pairs one stored prediction with the owning video's ground
// truth, the raw material for the leaderboard aggregation.
type PredictionFact struct {
	ModelName      string         `gorm:"column:model_name"`
	Prediction     constant.Label `gorm:"column:prediction"`
	Accepted       bool           `gorm:"column:accepted"`
	ResponseTimeMs int64          `gorm:"column:response_time_ms"`
}

type VideoRepository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB
	FindVideoByID(ctx context.Context, id uuid.UUID) (*entities.Video, error)
	FindVideoByYoutubeID(ctx context.Context, youtubeID string) (*entities.Video, error)
	CreateVideo(ctx context.Context, video *entities.Video) error
	InsertVideoColumns(ctx context.Context, columns map[string]interface{}) error
	UpdateVideoByYoutubeID(ctx context.Context, youtubeID string, updates map[string]interface{}) error
	ListVideos(ctx context.Context, page, limit int) ([]entities.Video, int64, error)
	ListTranscribedVideos(ctx context.Context) ([]entities.Video, error)
	InsertPrediction(ctx context.Context, prediction *entities.ModelPrediction) error
	HasPrediction(ctx context.Context, videoID uuid.UUID, modelName string) (bool, error)
	ListPredictionFacts(ctx context.Context) ([]PredictionFact, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) VideoRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(ctx)
	}, opts...)
}

func (r *repo) FindVideoByID(ctx context.Context, id uuid.UUID) (*entities.Video, error) {
	video := &entities.Video{}
	err := r.GetDB().WithContext(ctx).First(video, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return video, nil
}

func (r *repo) FindVideoByYoutubeID(ctx context.Context, youtubeID string) (*entities.Video, error) {
	video := &entities.Video{}
	err := r.GetDB().WithContext(ctx).First(video, "youtube_id = ?", youtubeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return video, nil
}

func (r *repo) CreateVideo(ctx context.Context, video *entities.Video) error {
	err := r.GetDB().WithContext(ctx).Create(video).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *repo) InsertVideoColumns(ctx context.Context, columns map[string]interface{}) error {
	err := r.GetDB().WithContext(ctx).Model(&entities.Video{}).Create(columns).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *repo) UpdateVideoByYoutubeID(ctx context.Context, youtubeID string, updates map[string]interface{}) error {
	return r.GetDB().WithContext(ctx).Model(&entities.Video{}).Where("youtube_id = ?", youtubeID).Updates(updates).Error
}

func (r *repo) ListVideos(ctx context.Context, page, limit int) ([]entities.Video, int64, error) {
	var videos []entities.Video
	var total int64

	if err := r.GetDB().WithContext(ctx).Model(&entities.Video{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := r.GetDB().WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&videos).Error
	if err != nil {
		return nil, 0, err
	}

	return videos, total, nil
}

func (r *repo) ListTranscribedVideos(ctx context.Context) ([]entities.Video, error) {
	var videos []entities.Video
	err := r.GetDB().WithContext(ctx).
		Where("transcript IS NOT NULL").
		Order("created_at ASC").
		Find(&videos).Error
	if err != nil {
		return nil, err
	}
	return videos, nil
}

func (r *repo) InsertPrediction(ctx context.Context, prediction *entities.ModelPrediction) error {
	return r.GetDB().WithContext(ctx).Create(prediction).Error
}

func (r *repo) HasPrediction(ctx context.Context, videoID uuid.UUID, modelName string) (bool, error) {
	var count int64
	err := r.GetDB().WithContext(ctx).
		Model(&entities.ModelPrediction{}).
		Where("video_id = ? AND model_name = ?", videoID, modelName).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ListPredictionFacts(ctx context.Context) ([]PredictionFact, error) {
	var facts []PredictionFact
	err := r.GetDB().WithContext(ctx).
		Table("model_predictions").
		Select("model_predictions.model_name, model_predictions.prediction, model_predictions.response_time_ms, videos.accepted").
		Joins("JOIN videos ON videos.id = model_predictions.video_id").
		Scan(&facts).Error
	if err != nil {
		return nil, err
	}
	return facts, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
