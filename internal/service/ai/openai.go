package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"hoomachat/internal/config"
	"hoomachat/internal/models"
)

// openAIGateway talks to OpenAI-style chat APIs. The system prompt is
// injected as a leading system-role message.
type openAIGateway struct {
	chatModel    model.BaseChatModel
	systemPrompt string
}

func newOpenAIGateway(cfg *config.Config, systemPrompt string) (Gateway, error) {
	maxTokens := cfg.MaxOutputTokens
	temperature := float32(cfg.Temperature)
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		APIKey:      cfg.OpenAIAPIKey,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("init openai chat model: %w", err)
	}
	return &openAIGateway{chatModel: chatModel, systemPrompt: systemPrompt}, nil
}

func (g *openAIGateway) Complete(ctx context.Context, turns []models.Turn) string {
	messages := make([]*schema.Message, 0, len(turns)+1)
	messages = append(messages, &schema.Message{Role: schema.System, Content: g.systemPrompt})
	messages = append(messages, toSchemaMessages(turns)...)

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		log.Error().Err(err).Str("provider", g.Name()).Msg("provider call failed")
		return degradedReplies[classifyFailure(err)]
	}
	return resp.Content
}

func (g *openAIGateway) Name() string     { return config.ProviderOpenAI }
func (g *openAIGateway) Configured() bool { return true }

// toSchemaMessages maps stored turns to the eino message shape,
// preserving order. Unknown roles become user turns.
func toSchemaMessages(turns []models.Turn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		var role schema.RoleType
		switch t.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: t.Content})
	}
	return messages
}
