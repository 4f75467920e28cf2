package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"hoomachat/internal/config"
	"hoomachat/internal/models"
)

// anthropicGateway talks to Anthropic-style chat APIs. The message list
// may only carry user and assistant roles; the system prompt is passed
// separately and ends up in the dedicated system field of the request.
type anthropicGateway struct {
	chatModel    model.BaseChatModel
	systemPrompt string
}

func newAnthropicGateway(cfg *config.Config, systemPrompt string) (Gateway, error) {
	var baseURLPtr *string
	if cfg.AnthropicBaseURL != "" {
		baseURLPtr = &cfg.AnthropicBaseURL
	}
	temperature := float32(cfg.Temperature)
	chatModel, err := claude.NewChatModel(context.Background(), &claude.Config{
		APIKey:      cfg.AnthropicAPIKey,
		Model:       cfg.AnthropicModel,
		BaseURL:     baseURLPtr,
		MaxTokens:   cfg.MaxOutputTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("init anthropic chat model: %w", err)
	}
	return &anthropicGateway{chatModel: chatModel, systemPrompt: systemPrompt}, nil
}

func (g *anthropicGateway) Complete(ctx context.Context, turns []models.Turn) string {
	messages := make([]*schema.Message, 0, len(turns)+1)
	messages = append(messages, &schema.Message{Role: schema.System, Content: g.systemPrompt})
	messages = append(messages, toSchemaMessages(stripNonConversational(turns))...)

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		log.Error().Err(err).Str("provider", g.Name()).Msg("provider call failed")
		return degradedReplies[classifyFailure(err)]
	}
	return resp.Content
}

func (g *anthropicGateway) Name() string     { return config.ProviderAnthropic }
func (g *anthropicGateway) Configured() bool { return true }

// stripNonConversational drops any turn that is not a plain user or
// assistant message; the API rejects other roles inside the turn list.
func stripNonConversational(turns []models.Turn) []models.Turn {
	out := make([]models.Turn, 0, len(turns))
	for _, t := range turns {
		if t.Role == models.RoleUser || t.Role == models.RoleAssistant {
			out = append(out, t)
		}
	}
	return out
}
