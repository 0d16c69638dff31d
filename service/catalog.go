package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/oliulv/yc-eval-game/constant"
	"github.com/oliulv/yc-eval-game/dto"
	"github.com/oliulv/yc-eval-game/pkg/llm"
)

var ErrModelNotFound = errors.New("model not found")

// ModelLister is the slice of the gateway client the catalog needs.
type ModelLister interface {
	ListModels(ctx context.Context) ([]llm.ModelInfo, error)
}

// Catalog resolves the set of callable model identifiers. The resolved list
// is cached for the life of the process; concurrent first callers are
// serialized so the fetch runs once.
type Catalog interface {
	List(ctx context.Context) ([]dto.GatewayModel, error)
	Get(ctx context.Context, id string) (*dto.GatewayModel, error)
	Recommended(ctx context.Context) ([]dto.GatewayModel, error)
}

// Compiled-in table used when no gateway credential is configured.
var staticModelIDs = []string{
	"openai/gpt-4o",
	"openai/gpt-4o-mini",
	"openai/gpt-4.1-mini",
	"anthropic/claude-sonnet-4",
	"anthropic/claude-haiku-4.5",
	"google/gemini-2.5-flash",
	"google/gemini-3-pro-preview",
	"xai/grok-2",
	"xai/grok-code-fast-1",
	"meta-llama/llama-3.3-70b-instruct",
}

type catalog struct {
	gateway     ModelLister
	allowlist   []string
	recommended map[string]bool

	mu     sync.Mutex
	loaded bool
	models []dto.GatewayModel
}

// NewCatalog builds a catalog over the gateway's model list. Pass a nil
// gateway to serve the compiled-in table instead.
func NewCatalog(gateway ModelLister, allowlistPrefixes []string, recommendedIDs []string) Catalog {
	recommended := make(map[string]bool, len(recommendedIDs))
	for _, id := range recommendedIDs {
		recommended[id] = true
	}
	return &catalog{
		gateway:     gateway,
		allowlist:   allowlistPrefixes,
		recommended: recommended,
	}
}

func (c *catalog) List(ctx context.Context) ([]dto.GatewayModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		models, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.models = models
		c.loaded = true
	}

	out := make([]dto.GatewayModel, len(c.models))
	copy(out, c.models)
	return out, nil
}

func (c *catalog) Get(ctx context.Context, id string) (*dto.GatewayModel, error) {
	models, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].ID == id {
			return &models[i], nil
		}
	}
	return nil, ErrModelNotFound
}

func (c *catalog) Recommended(ctx context.Context) ([]dto.GatewayModel, error) {
	models, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []dto.GatewayModel
	for _, m := range models {
		if m.Recommended {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *catalog) load(ctx context.Context) ([]dto.GatewayModel, error) {
	ids := staticModelIDs
	if c.gateway != nil {
		raw, err := c.gateway.ListModels(ctx)
		if err != nil {
			return nil, err
		}
		ids = make([]string, 0, len(raw))
		for _, m := range raw {
			ids = append(ids, m.ID)
		}
	}

	var models []dto.GatewayModel
	for _, id := range ids {
		if !c.matchesAllowlist(id) {
			continue
		}
		models = append(models, dto.GatewayModel{
			ID:          id,
			Provider:    providerOf(id),
			Label:       makeLabel(id),
			Kind:        InferModelKind(id),
			Recommended: c.recommended[id],
		})
	}

	// recommended first, then alphabetical
	sort.Slice(models, func(i, j int) bool {
		if models[i].Recommended != models[j].Recommended {
			return models[i].Recommended
		}
		return models[i].ID < models[j].ID
	})

	return models, nil
}

func (c *catalog) matchesAllowlist(id string) bool {
	for _, prefix := range c.allowlist {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

func providerOf(id string) string {
	provider, _, found := strings.Cut(id, "/")
	if !found || provider == "" {
		return "unknown"
	}
	return provider
}

func makeLabel(id string) string {
	provider, name, found := strings.Cut(id, "/")
	if !found {
		return id
	}
	return provider + " – " + name
}

// InferModelKind guesses the capability kind from the identifier; only chat
// models are callable by the prediction engine.
func InferModelKind(id string) constant.ModelKind {
	lower := strings.ToLower(id)
	switch {
	case strings.Contains(lower, "image"), strings.Contains(lower, "img"),
		strings.Contains(lower, "vision"), strings.Contains(lower, "flux"):
		return constant.ModelKindImage
	case strings.Contains(lower, "embed"):
		return constant.ModelKindEmbedding
	default:
		return constant.ModelKindChat
	}
}
