package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/oliulv/yc-eval-game/dto"
	"github.com/oliulv/yc-eval-game/entities"
	"github.com/oliulv/yc-eval-game/repository"
	"github.com/oliulv/yc-eval-game/service"
)

type ServiceDependencies struct {
	Repo          repository.VideoRepository
	Transcription service.TranscriptionService
	Catalog       service.Catalog
	Predictor     service.PredictionService
	Stats         service.StatsService
	Backfill      service.BackfillService
}

// BackfillHandler consumes one backfill message off the queue.
func BackfillHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var message dto.BackfillMessage
	if err := json.Unmarshal(msg.Body, &message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal backfill message")
		return err
	}

	zerolog.Ctx(ctx).Info().Str("video_id", message.VideoID.String()).Msg("received backfill message")

	return deps.Backfill.ProcessVideo(ctx, message)
}

type Handler struct {
	deps ServiceDependencies
}

func NewHandler(deps ServiceDependencies) *Handler {
	return &Handler{deps: deps}
}

// Submit validates the URL, rejects duplicates with the existing row's id,
// inserts a placeholder row and synchronously runs the transcription
// pipeline. On pipeline failure the row still exists and the error is
// reported alongside it.
func (h *Handler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.YoutubeURL == "" || req.Accepted == nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "YouTube URL and accepted status are required"})
		return
	}

	youtubeID := service.ExtractYouTubeID(req.YoutubeURL)
	if youtubeID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid YouTube URL"})
		return
	}

	existing, err := h.deps.Repo.FindVideoByYoutubeID(ctx, youtubeID)
	if err == nil {
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "Video already exists", VideoID: existing.ID.String()})
		return
	}
	if !errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	title, err := service.FetchTitle(ctx, youtubeID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "YouTube video not found or unavailable",
			Details: err.Error(),
		})
		return
	}

	video := &entities.Video{
		ID:          uuid.New(),
		YoutubeID:   youtubeID,
		Title:       &title,
		Accepted:    *req.Accepted,
		SubmittedBy: "anon_" + uuid.NewString(),
	}
	if err := h.deps.Repo.CreateVideo(ctx, video); err != nil {
		// lost the insert race against a concurrent submit
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "Video already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	if _, err := h.deps.Transcription.TranscribeAndPersist(ctx, youtubeID, service.PersistOptions{AllowInsert: false}); err != nil {
		details := err.Error()
		if errors.Is(err, service.ErrBinaryNotFound) {
			details = "yt-dlp binary not found. Install yt-dlp and ensure it is on PATH."
		}

		if service.IsDownloadFailure(err) {
			zerolog.Ctx(ctx).Error().Err(err).Str("youtube_id", youtubeID).Msg("audio download failed")
			h.deps.Transcription.MarkDownloadFailure(ctx, youtubeID, details)
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": details, "video": video})
		return
	}

	c.JSON(http.StatusOK, dto.SubmitResponse{Success: true, Video: video})
}

func (h *Handler) Transcribe(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.YoutubeID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "YouTube ID is required"})
		return
	}

	transcript, cached, err := h.deps.Transcription.GetOrCreateTranscript(ctx, req.YoutubeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.TranscribeResponse{Transcript: transcript, Cached: cached})
}

// Predict fans the video's transcript out to the requested models, or to the
// recommended subset when none are named. The response always carries one
// entry per dispatched model, successes and failures side by side.
func (h *Handler) Predict(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.VideoID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Video ID is required"})
		return
	}

	video, ok := h.lookupVideoWithTranscript(c, req.VideoID)
	if !ok {
		return
	}

	var models []dto.GatewayModel
	if len(req.ModelIDs) > 0 {
		// unresolved ids are dropped, not fatal
		for _, id := range req.ModelIDs {
			model, err := h.deps.Catalog.Get(ctx, id)
			if err != nil {
				continue
			}
			models = append(models, *model)
		}
		if len(models) == 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "No valid models requested"})
			return
		}
	} else {
		recommended, err := h.deps.Catalog.Recommended(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
			return
		}
		models = recommended
	}

	results := h.deps.Predictor.PredictBatch(ctx, video, models, time.Duration(req.TimeoutMs)*time.Millisecond)

	c.JSON(http.StatusOK, dto.PredictResponse{Predictions: results, Actual: video.Accepted})
}

// Reason regenerates a single model's answer with a one-sentence rationale,
// keeping a prior label consistent when one is supplied.
func (h *Handler) Reason(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.VideoID == "" || req.ModelID == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "videoId and modelId are required"})
		return
	}

	model, err := h.deps.Catalog.Get(ctx, req.ModelID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Model not found"})
		return
	}

	video, ok := h.lookupVideoWithTranscript(c, req.VideoID)
	if !ok {
		return
	}

	prediction, err := h.deps.Predictor.Predict(ctx, *model, *video.Transcript, service.PredictOptions{
		IncludeReason: true,
		ForceLabel:    req.Prediction,
		Timeout:       time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	correct := prediction.Label == video.AcceptedLabel()
	c.JSON(http.StatusOK, dto.PredictionResult{
		ModelID:      model.ID,
		ModelName:    model.Label,
		Prediction:   prediction.Label,
		Reasoning:    prediction.Reasoning,
		ResponseTime: prediction.ResponseTimeMs,
		Correct:      &correct,
	})
}

func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.deps.Catalog.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ModelsResponse{Models: models})
}

func (h *Handler) ListVideos(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	videos, total, err := h.deps.Repo.ListVideos(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.VideoListResponse{
		Videos: videos,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

func (h *Handler) GetVideo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid video ID"})
		return
	}

	video, err := h.deps.Repo.FindVideoByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Video not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, video)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.deps.Stats.Leaderboard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.StatsResponse{Stats: stats})
}

func (h *Handler) lookupVideoWithTranscript(c *gin.Context, rawID string) (*entities.Video, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid video ID"})
		return nil, false
	}

	video, err := h.deps.Repo.FindVideoByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Video not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return nil, false
	}

	if video.Transcript == nil || *video.Transcript == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Video transcript not available. Please transcribe first."})
		return nil, false
	}

	return video, true
}
