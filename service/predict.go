package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/dto"
	"github.com/oliulv/yc-eval-game/entities"
	"github.com/oliulv/yc-eval-game/pkg/llm"
	"github.com/oliulv/yc-eval-game/repository"
)

const basePrompt = `You are evaluating a startup founder's application transcript for a competitive startup accelerator program. Based solely on the transcript content, predict whether this founder was accepted into the accelerator.`

const (
	DefaultPredictionTimeout = 8 * time.Second
	minPredictionTimeout     = 1 * time.Second

	// output caps bound cost and latency
	reasonMaxTokens = 120
	plainMaxTokens  = 10
)

var ErrNotChatModel = errors.New("model is not a chat model")

type PredictOptions struct {
	IncludeReason bool
	// ForceLabel keeps a prior answer consistent when only the rationale is
	// being regenerated. Empty means the model decides.
	ForceLabel constant.Label
	Timeout    time.Duration
}

type Prediction struct {
	Label          constant.Label
	Reasoning      string
	ResponseTimeMs int64
}

type PredictionService interface {
	Predict(ctx context.Context, model dto.GatewayModel, transcript string, opts PredictOptions) (*Prediction, error)
	PredictBatch(ctx context.Context, video *entities.Video, models []dto.GatewayModel, timeout time.Duration) []dto.PredictionResult
}

type predictionService struct {
	registry *llm.Registry
	repo     repository.VideoRepository
}

func NewPredictionService(registry *llm.Registry, repo repository.VideoRepository) PredictionService {
	return &predictionService{
		registry: registry,
		repo:     repo,
	}
}

// BuildPrompt frames the acceptance judgment. With a rationale the instructed
// output is exactly two lines (ANSWER/REASON); without one it is a bare
// YES/NO so the output cap can stay tight.
func BuildPrompt(transcript string, includeReason bool, forceLabel constant.Label) string {
	if includeReason {
		prefix := "Decide YES or NO."
		if forceLabel != "" {
			prefix = fmt.Sprintf("You already answered %s. Keep that same label.", forceLabel)
		}
		return fmt.Sprintf(`%s

%s Respond with:
ANSWER: YES or NO
REASON: One concise sentence explaining why.

Transcript:
%s`, basePrompt, prefix, transcript)
	}

	return fmt.Sprintf(`%s

Respond with ONLY: YES or NO

Transcript:
%s`, basePrompt, transcript)
}

// ParseLabel normalizes a model's free-text answer to a binary label.
// Unparseable responses deliberately resolve to NO rather than erroring;
// the skew toward rejection is a product decision, not a bug.
func ParseLabel(text string) constant.Label {
	upper := strings.ToUpper(strings.TrimSpace(text))
	if strings.Contains(upper, "YES") || strings.HasPrefix(upper, "Y") {
		return constant.LabelYes
	}
	if strings.Contains(upper, "NO") || strings.HasPrefix(upper, "N") {
		return constant.LabelNo
	}
	return constant.LabelNo
}

var reasonPrefixPattern = regexp.MustCompile(`(?i)^reason[:\s]*`)

// ParseReason extracts the rationale line. Falls back to everything after
// the first colon, then to the whole text.
func ParseReason(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "reason") {
			return strings.TrimSpace(reasonPrefixPattern.ReplaceAllString(trimmed, ""))
		}
	}

	if idx := strings.Index(text, ":"); idx >= 0 {
		if rest := strings.TrimSpace(text[idx+1:]); rest != "" {
			return rest
		}
	}
	return strings.TrimSpace(text)
}

func clampTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return DefaultPredictionTimeout
	}
	if timeout < minPredictionTimeout {
		return minPredictionTimeout
	}
	return timeout
}

func (s *predictionService) Predict(ctx context.Context, model dto.GatewayModel, transcript string, opts PredictOptions) (*Prediction, error) {
	if model.Kind != constant.ModelKindChat {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotChatModel, model.ID, model.Kind)
	}

	timeout := clampTimeout(opts.Timeout)
	text, elapsed, err := s.complete(ctx, model.ID, transcript, opts.IncludeReason, opts.ForceLabel, timeout)
	if err != nil {
		// a provider rejecting the rationale-shaped request outright gets one
		// degraded retry without the rationale; a timeout does not
		if !opts.IncludeReason || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("model", model.ID).Msg("rationale call rejected, retrying without rationale")
		text, elapsed, err = s.complete(ctx, model.ID, transcript, false, "", timeout)
		if err != nil {
			return nil, err
		}
		return &Prediction{
			Label:          ParseLabel(text),
			ResponseTimeMs: elapsed,
		}, nil
	}

	prediction := &Prediction{
		Label:          ParseLabel(text),
		ResponseTimeMs: elapsed,
	}
	if opts.IncludeReason {
		prediction.Reasoning = ParseReason(text)
	}

	return prediction, nil
}

func (s *predictionService) complete(ctx context.Context, modelID, transcript string, includeReason bool, forceLabel constant.Label, timeout time.Duration) (string, int64, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	llmOpts := llm.Options{MaxTokens: plainMaxTokens, Temperature: 0}
	if includeReason {
		llmOpts = llm.Options{MaxTokens: reasonMaxTokens, Temperature: 0.2}
	}

	start := time.Now()
	text, err := s.registry.Resolve(modelID).Complete(callCtx, modelID, BuildPrompt(transcript, includeReason, forceLabel), llmOpts)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		if callCtx.Err() != nil {
			err = fmt.Errorf("prediction timed out after %s: %w", timeout, context.DeadlineExceeded)
		}
		return "", elapsed, err
	}

	return text, elapsed, nil
}

// PredictBatch fans one transcript out to every given model concurrently and
// waits for all calls to settle. Results keep the caller's model order; one
// model failing or timing out never aborts its siblings. Each success is
// stored as an immutable prediction row, and a storage failure does not
// suppress that model's label from the returned batch.
func (s *predictionService) PredictBatch(ctx context.Context, video *entities.Video, models []dto.GatewayModel, timeout time.Duration) []dto.PredictionResult {
	transcript := ""
	if video.Transcript != nil {
		transcript = *video.Transcript
	}

	results := make([]dto.PredictionResult, len(models))

	var wg sync.WaitGroup
	for i, model := range models {
		wg.Add(1)
		go func(i int, model dto.GatewayModel) {
			defer wg.Done()

			entry := dto.PredictionResult{
				ModelID:   model.ID,
				ModelName: model.Label,
			}

			prediction, err := s.Predict(ctx, model, transcript, PredictOptions{Timeout: timeout})
			if err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("model", model.ID).Msg("prediction failed")
				entry.Error = err.Error()
				results[i] = entry
				return
			}

			entry.Prediction = prediction.Label
			entry.ResponseTime = prediction.ResponseTimeMs
			correct := prediction.Label == constant.LabelFromAccepted(video.Accepted)
			entry.Correct = &correct

			if err := s.repo.InsertPrediction(ctx, &entities.ModelPrediction{
				VideoID:        video.ID,
				ModelName:      model.ID,
				Prediction:     prediction.Label,
				ResponseTimeMs: prediction.ResponseTimeMs,
			}); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Str("model", model.ID).Msg("failed to store prediction")
			}

			results[i] = entry
		}(i, model)
	}
	wg.Wait()

	return results
}
