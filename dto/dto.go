package dto

import (
	"github.com/google/uuid"

	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/entities"
)

type SubmitRequest struct {
	YoutubeURL string `json:"youtubeUrl"`
	Accepted   *bool  `json:"accepted"`
}

type SubmitResponse struct {
	Success bool            `json:"success"`
	Video   *entities.Video `json:"video"`
}

type TranscribeRequest struct {
	YoutubeID string `json:"youtubeId"`
}

type TranscribeResponse struct {
	Transcript string `json:"transcript"`
	Cached     bool   `json:"cached"`
}

type PredictRequest struct {
	VideoID   string   `json:"videoId"`
	ModelIDs  []string `json:"modelIds"`
	TimeoutMs int64    `json:"timeoutMs"`
}

// PredictionResult is one model's entry in a batch response. Exactly one of
// (Prediction, Error) is meaningful; a failed model still gets an entry.
type PredictionResult struct {
	ModelID      string         `json:"modelId"`
	ModelName    string         `json:"modelName"`
	Prediction   constant.Label `json:"prediction,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty"`
	ResponseTime int64          `json:"responseTime,omitempty"`
	Reasoning    string         `json:"reasoning,omitempty"`
	Correct      *bool          `json:"correct,omitempty"`
	Error        string         `json:"error,omitempty"`
}

type PredictResponse struct {
	Predictions []PredictionResult `json:"predictions"`
	Actual      bool               `json:"actual"`
}

type ReasonRequest struct {
	VideoID    string         `json:"videoId"`
	ModelID    string         `json:"modelId"`
	Prediction constant.Label `json:"prediction"`
	TimeoutMs  int64          `json:"timeoutMs"`
}

// GatewayModel is one callable entry of the model catalog.
type GatewayModel struct {
	ID          string             `json:"id"`
	Provider    string             `json:"provider"`
	Label       string             `json:"label"`
	Kind        constant.ModelKind `json:"kind"`
	Recommended bool               `json:"recommended"`
}

type ModelsResponse struct {
	Models []GatewayModel `json:"models"`
}

type VideoListResponse struct {
	Videos []entities.Video `json:"videos"`
	Total  int64            `json:"total"`
	Page   int              `json:"page"`
	Limit  int              `json:"limit"`
}

type StatsResponse struct {
	Stats []entities.ModelStats `json:"stats"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	VideoID string `json:"videoId,omitempty"`
	Details string `json:"details,omitempty"`
}

// BackfillMessage asks the worker to fill missing recommended-model
// predictions for one video.
type BackfillMessage struct {
	VideoID uuid.UUID `json:"videoId"`
}
