package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/dto"
	"github.com/oliulv/yc-eval-game/entities"
	"github.com/oliulv/yc-eval-game/pkg/llm"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		input string
		want  constant.Label
	}{
		{"YES", constant.LabelYes},
		{"yes", constant.LabelYes},
		{"  Yes.  ", constant.LabelYes},
		{"Answer: yes, this founder was accepted", constant.LabelYes},
		{"Y", constant.LabelYes},
		{"NO", constant.LabelNo},
		{"no way", constant.LabelNo},
		{"N", constant.LabelNo},
		{"nope", constant.LabelNo},
		{"maybe", constant.LabelNo},
		{"", constant.LabelNo},
	}

	for _, tt := range tests {
		if got := ParseLabel(tt.input); got != tt.want {
			t.Fatalf("ParseLabel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseReason(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "two line answer",
			input: "ANSWER: YES\nREASON: Strong traction and a clear market.",
			want:  "Strong traction and a clear market.",
		},
		{
			name:  "reason line lowercase",
			input: "answer: no\nreason: the pitch was vague",
			want:  "the pitch was vague",
		},
		{
			name:  "colon fallback",
			input: "Verdict: the team is too early",
			want:  "the team is too early",
		},
		{
			name:  "whole text fallback",
			input: "  The founder showed no evidence of demand.  ",
			want:  "The founder showed no evidence of demand.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseReason(tt.input); got != tt.want {
				t.Fatalf("ParseReason(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	plain := BuildPrompt("the transcript", false, "")
	if !strings.Contains(plain, "Respond with ONLY: YES or NO") {
		t.Fatalf("plain prompt missing bare-answer instruction:\n%s", plain)
	}
	if !strings.Contains(plain, "the transcript") {
		t.Fatalf("plain prompt missing transcript")
	}

	reasoned := BuildPrompt("the transcript", true, "")
	if !strings.Contains(reasoned, "ANSWER: YES or NO") || !strings.Contains(reasoned, "REASON:") {
		t.Fatalf("reasoned prompt missing two-line format:\n%s", reasoned)
	}
	if !strings.Contains(reasoned, "Decide YES or NO.") {
		t.Fatalf("reasoned prompt missing decide instruction:\n%s", reasoned)
	}

	forced := BuildPrompt("the transcript", true, constant.LabelYes)
	if !strings.Contains(forced, "You already answered YES. Keep that same label.") {
		t.Fatalf("forced prompt missing consistency instruction:\n%s", forced)
	}
	if strings.Contains(forced, "Decide YES or NO.") {
		t.Fatalf("forced prompt should not ask the model to decide:\n%s", forced)
	}
}

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, DefaultPredictionTimeout},
		{-time.Second, DefaultPredictionTimeout},
		{200 * time.Millisecond, minPredictionTimeout},
		{3 * time.Second, 3 * time.Second},
	}
	for _, tt := range tests {
		if got := clampTimeout(tt.in); got != tt.want {
			t.Fatalf("clampTimeout(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func chatModel(id string) dto.GatewayModel {
	return dto.GatewayModel{ID: id, Provider: providerOf(id), Label: makeLabel(id), Kind: constant.ModelKindChat}
}

func TestPredictRejectsNonChatModels(t *testing.T) {
	svc := NewPredictionService(llm.NewRegistry(&fakeCompleter{
		respond: func(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
			t.Fatal("completer should not be called")
			return "", nil
		},
	}), &fakeRepo{})

	model := dto.GatewayModel{ID: "openai/dall-e-image", Kind: constant.ModelKindImage}
	if _, err := svc.Predict(context.Background(), model, "transcript", PredictOptions{}); !errors.Is(err, ErrNotChatModel) {
		t.Fatalf("expected ErrNotChatModel, got %v", err)
	}
}

func TestPredictDegradedRetryWithoutRationale(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
			if strings.Contains(prompt, "REASON:") {
				return "", errors.New("provider rejected request")
			}
			return "YES", nil
		},
	}
	svc := NewPredictionService(llm.NewRegistry(completer), &fakeRepo{})

	prediction, err := svc.Predict(context.Background(), chatModel("openai/gpt-4o-mini"), "transcript", PredictOptions{IncludeReason: true})
	if err != nil {
		t.Fatalf("expected degraded retry to succeed, got %v", err)
	}
	if prediction.Label != constant.LabelYes {
		t.Fatalf("got label %q, want YES", prediction.Label)
	}
	if prediction.Reasoning != "" {
		t.Fatalf("degraded retry should carry no reasoning, got %q", prediction.Reasoning)
	}
	if completer.callCount() != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", completer.callCount())
	}
}

func TestPredictNoRetryOnTimeout(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	svc := NewPredictionService(llm.NewRegistry(completer), &fakeRepo{})

	_, err := svc.Predict(context.Background(), chatModel("openai/gpt-4o-mini"), "transcript", PredictOptions{
		IncludeReason: true,
		Timeout:       minPredictionTimeout,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if completer.callCount() != 1 {
		t.Fatalf("timeout must not trigger a retry, got %d calls", completer.callCount())
	}
}

func TestPredictBatchSettlesAllModels(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
			switch model {
			case "openai/gpt-4o-mini":
				return "YES", nil
			case "anthropic/claude-haiku-4.5":
				return "", errors.New("rate limited")
			default:
				return "NO", nil
			}
		},
	}
	repo := &fakeRepo{}
	svc := NewPredictionService(llm.NewRegistry(completer), repo)

	transcript := "a pitch"
	video := &entities.Video{ID: uuid.New(), Transcript: &transcript, Accepted: true}
	models := []dto.GatewayModel{
		chatModel("openai/gpt-4o-mini"),
		chatModel("anthropic/claude-haiku-4.5"),
		chatModel("google/gemini-2.5-flash"),
	}

	results := svc.PredictBatch(context.Background(), video, models, 0)

	if len(results) != len(models) {
		t.Fatalf("got %d results, want %d", len(results), len(models))
	}
	for i, model := range models {
		if results[i].ModelID != model.ID {
			t.Fatalf("result %d is %s, want caller order %s", i, results[i].ModelID, model.ID)
		}
	}

	if results[0].Prediction != constant.LabelYes || results[0].Correct == nil || !*results[0].Correct {
		t.Fatalf("gpt result wrong: %+v", results[0])
	}
	if results[1].Error == "" || results[1].Prediction != "" {
		t.Fatalf("failed model should carry only an error: %+v", results[1])
	}
	if results[2].Prediction != constant.LabelNo || results[2].Correct == nil || *results[2].Correct {
		t.Fatalf("gemini result wrong: %+v", results[2])
	}

	// only the two successes become rows
	if got := len(repo.predictions()); got != 2 {
		t.Fatalf("stored %d predictions, want 2", got)
	}
}

func TestPredictBatchStorageFailureKeepsResult(t *testing.T) {
	completer := &fakeCompleter{
		respond: func(ctx context.Context, model, prompt string, opts llm.Options) (string, error) {
			return "YES", nil
		},
	}
	repo := &fakeRepo{
		insertPredictionFn: func(prediction *entities.ModelPrediction) error {
			return errors.New("db down")
		},
	}
	svc := NewPredictionService(llm.NewRegistry(completer), repo)

	transcript := "a pitch"
	video := &entities.Video{ID: uuid.New(), Transcript: &transcript, Accepted: true}

	results := svc.PredictBatch(context.Background(), video, []dto.GatewayModel{chatModel("openai/gpt-4o-mini")}, 0)
	if results[0].Error != "" {
		t.Fatalf("storage failure must not surface as a prediction error: %+v", results[0])
	}
	if results[0].Prediction != constant.LabelYes {
		t.Fatalf("got %q, want YES", results[0].Prediction)
	}
}
