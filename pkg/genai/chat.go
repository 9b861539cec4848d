package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Replies used when the model cannot answer.
const (
	NoKeyReply   = "Ho ho... oh dear! My communication line has a problem (missing API key)."
	QuotaReply   = "Ho ho ho! The North Pole mailbox is overloaded right now. The reindeer are resting for a moment, try again in a few seconds! 🦌💤"
	FailureReply = "Oh my! A blizzard is interfering with the signal. Could you say that again?"
	EmptyReply   = "Ho ho ho! I couldn't quite hear you."
)

// DefaultTemperature is the sampling temperature for chat replies.
const DefaultTemperature = 0.7

// Turn is one line of chat history.
type Turn struct {
	FromUser bool
	Text     string
}

// ChatConfig configures the chat service.
type ChatConfig struct {
	Language    string
	Temperature float64
}

// ChatService answers chat messages in Santa's voice.
type ChatService struct {
	client *Client
	cfg    ChatConfig
	retry  RetryConfig
	logger zerolog.Logger
}

// NewChatService creates a chat service.
func NewChatService(client *Client, cfg ChatConfig, retry RetryConfig, logger zerolog.Logger) *ChatService {
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &ChatService{
		client: client,
		cfg:    cfg,
		retry:  retry,
		logger: logger.With().Str("component", "chat").Logger(),
	}
}

// SystemInstruction returns Santa's persona.
func SystemInstruction(language string) string {
	return strings.Join([]string{
		"You are Santa Claus.",
		"Language: " + language + ".",
		"Persona: Jolly, warm, kind, slightly old-fashioned but tech-savvy enough to use a tracker.",
		"Audience: Could be a child or an adult. Keep it family-friendly and magical.",
		`Context: The user is on a "Santa Tracker" dashboard.`,
		"Tasks: Answer questions about Christmas, your reindeer, elves, or your current status.",
		"Style: Use Christmas emojis (🎅, 🎄, 🦌, 🎁). Keep responses concise (under 50 words) unless asked for a story.",
	}, "\n")
}

// Transcript renders the history and the new message as a dialogue ending
// with Santa's turn.
func Transcript(history []Turn, message string) string {
	var sb strings.Builder
	for _, t := range history {
		speaker := "Santa"
		if t.FromUser {
			speaker = "Child"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, t.Text)
	}
	fmt.Fprintf(&sb, "Child: %s\nSanta:", message)
	return sb.String()
}

// SendMessage returns Santa's reply to message. It never fails: every
// error is turned into an in-character reply.
func (s *ChatService) SendMessage(ctx context.Context, history []Turn, message string) string {
	if !s.client.HasAPIKey() {
		return NoKeyReply
	}

	temp := s.cfg.Temperature
	req := Request{
		SystemInstruction: SystemInstruction(s.cfg.Language),
		Prompt:            Transcript(history, message),
		Temperature:       &temp,
	}

	text, err := RetryWithBackoff(ctx, s.retry, s.logger, func() (string, error) {
		return s.client.GenerateContent(ctx, req)
	})
	switch {
	case err == nil && text == "":
		return EmptyReply
	case err == nil:
		return text
	case IsQuotaError(err):
		s.logger.Warn().Msg("quota exceeded, sending mailbox reply")
		return QuotaReply
	case errors.Is(err, ErrMissingAPIKey):
		return NoKeyReply
	default:
		s.logger.Error().Err(err).Msg("chat request failed")
		return FailureReply
	}
}
