package ai

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"hoomachat/internal/config"
	"hoomachat/internal/models"
)

// Degraded replies returned in place of provider output. These are user
// facing and deliberately non-technical.
const (
	ReplyUnavailable = "I'm sorry, but the AI service is currently unavailable. " +
		"Please try again later or contact our team directly."
	ReplyTechnicalDifficulties = "I apologize, but I'm experiencing technical difficulties. " +
		"Please try again in a moment, or feel free to contact our team directly for immediate assistance."
)

// failureKind classifies why a completion could not be produced. New
// failure modes must be added here so their user-facing mapping is a
// deliberate choice rather than a blanket catch.
type failureKind int

const (
	failureUnconfigured failureKind = iota
	failureTimeout
	failureUpstream
)

var degradedReplies = map[failureKind]string{
	failureUnconfigured: ReplyUnavailable,
	failureTimeout:      ReplyTechnicalDifficulties,
	failureUpstream:     ReplyTechnicalDifficulties,
}

func classifyFailure(err error) failureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return failureTimeout
	}
	return failureUpstream
}

// Gateway produces an assistant reply for a windowed slice of turns. It
// never fails at the interface level: upstream errors are logged and
// mapped to a canned degraded reply.
type Gateway interface {
	Complete(ctx context.Context, turns []models.Turn) string
	Name() string
	Configured() bool
}

// New selects the gateway variant once at startup. A provider whose
// client cannot be constructed degrades to the unconfigured variant so
// the chat surface stays up.
func New(cfg *config.Config, systemPrompt string) Gateway {
	var (
		gw  Gateway
		err error
	)
	switch {
	case cfg.Provider == config.ProviderOpenAI && cfg.OpenAIAPIKey != "":
		gw, err = newOpenAIGateway(cfg, systemPrompt)
	case cfg.Provider == config.ProviderAnthropic && cfg.AnthropicAPIKey != "":
		gw, err = newAnthropicGateway(cfg, systemPrompt)
	default:
		log.Warn().Str("provider", cfg.Provider).Msg("no provider credential configured, chat will return the unavailable reply")
		return unconfiguredGateway{}
	}
	if err != nil {
		log.Error().Err(err).Str("provider", cfg.Provider).Msg("provider client init failed, degrading to unconfigured")
		return unconfiguredGateway{}
	}
	log.Info().Str("provider", gw.Name()).Str("model", cfg.ProviderModel()).Msg("provider gateway ready")
	return gw
}

// unconfiguredGateway is the variant used when no credential or
// provider is configured. It is deterministic and touches no network.
type unconfiguredGateway struct{}

func (unconfiguredGateway) Complete(context.Context, []models.Turn) string {
	return degradedReplies[failureUnconfigured]
}

func (unconfiguredGateway) Name() string     { return "unconfigured" }
func (unconfiguredGateway) Configured() bool { return false }
