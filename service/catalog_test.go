package service

import (
	"context"
	"errors"
	"testing"

	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/pkg/llm"
)

type fakeLister struct {
	calls int
	ids   []string
	err   error
}

func (f *fakeLister) ListModels(ctx context.Context) ([]llm.ModelInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]llm.ModelInfo, len(f.ids))
	for i, id := range f.ids {
		out[i] = llm.ModelInfo{ID: id}
	}
	return out, nil
}

var testAllowlist = []string{"openai/", "anthropic/", "google/", "xai/", "meta-llama/"}

func TestInferModelKind(t *testing.T) {
	tests := []struct {
		id   string
		want constant.ModelKind
	}{
		{"openai/gpt-4o-mini", constant.ModelKindChat},
		{"openai/dall-e-3-image", constant.ModelKindImage},
		{"bfl/flux-pro", constant.ModelKindImage},
		{"google/gemini-vision", constant.ModelKindImage},
		{"stability/img-ultra", constant.ModelKindImage},
		{"openai/text-embedding-3-small", constant.ModelKindEmbedding},
		{"anthropic/claude-haiku-4.5", constant.ModelKindChat},
	}

	for _, tt := range tests {
		if got := InferModelKind(tt.id); got != tt.want {
			t.Fatalf("InferModelKind(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestCatalogAllowlistAndOrder(t *testing.T) {
	lister := &fakeLister{ids: []string{
		"mistral/mistral-large",
		"openai/gpt-4o",
		"anthropic/claude-haiku-4.5",
		"openai/gpt-4o-mini",
	}}
	c := NewCatalog(lister, testAllowlist, []string{"openai/gpt-4o-mini"})

	models, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	wantOrder := []string{"openai/gpt-4o-mini", "anthropic/claude-haiku-4.5", "openai/gpt-4o"}
	if len(models) != len(wantOrder) {
		t.Fatalf("got %d models, want %d (allowlist should drop mistral)", len(models), len(wantOrder))
	}
	for i, id := range wantOrder {
		if models[i].ID != id {
			t.Fatalf("position %d is %s, want %s", i, models[i].ID, id)
		}
	}
	if !models[0].Recommended {
		t.Fatalf("recommended model should sort first")
	}
	if models[0].Provider != "openai" || models[0].Label != "openai – gpt-4o-mini" {
		t.Fatalf("bad metadata: %+v", models[0])
	}
}

func TestCatalogCachesGatewayFetch(t *testing.T) {
	lister := &fakeLister{ids: []string{"openai/gpt-4o"}}
	c := NewCatalog(lister, testAllowlist, nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.List(ctx); err != nil {
			t.Fatalf("List: %v", err)
		}
	}
	if _, err := c.Get(ctx, "openai/gpt-4o"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if lister.calls != 1 {
		t.Fatalf("gateway fetched %d times, want 1", lister.calls)
	}
}

func TestCatalogStaticFallback(t *testing.T) {
	c := NewCatalog(nil, testAllowlist, []string{"openai/gpt-4o-mini"})

	models, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(models) == 0 {
		t.Fatalf("compiled-in table should not be empty")
	}

	recommended, err := c.Recommended(context.Background())
	if err != nil {
		t.Fatalf("Recommended: %v", err)
	}
	if len(recommended) != 1 || recommended[0].ID != "openai/gpt-4o-mini" {
		t.Fatalf("recommended = %+v", recommended)
	}
}

func TestCatalogGetUnknownModel(t *testing.T) {
	c := NewCatalog(nil, testAllowlist, nil)
	if _, err := c.Get(context.Background(), "openai/does-not-exist"); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestCatalogGatewayErrorNotCached(t *testing.T) {
	lister := &fakeLister{err: errors.New("gateway down")}
	c := NewCatalog(lister, testAllowlist, nil)

	if _, err := c.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	lister.err = nil
	lister.ids = []string{"openai/gpt-4o"}
	models, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if len(models) != 1 {
		t.Fatalf("got %d models after recovery, want 1", len(models))
	}
}
