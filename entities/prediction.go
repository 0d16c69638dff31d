package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/oliulv/yc-eval-game/constant"
)

// ModelPrediction is an immutable fact row: one model's answer for one video.
// Corrections are new rows, never updates.
type ModelPrediction struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	VideoID        uuid.UUID      `json:"video_id" gorm:"type:uuid;not null;index:idx_model_predictions_video"`
	ModelName      string         `json:"model_name" gorm:"type:varchar(100);not null"`
	Prediction     constant.Label `json:"prediction" gorm:"type:varchar(3);not null"`
	Confidence     *float64       `json:"confidence"`
	ResponseTimeMs int64          `json:"response_time_ms" gorm:"not null"`
	CreatedAt      time.Time      `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (ModelPrediction) TableName() string {
	return "model_predictions"
}
