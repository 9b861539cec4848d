package genai

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

const (
	// NoKeyCaption is returned when no API key is configured.
	NoKeyCaption = "Flying high!"

	// EmptyCaption is returned when the model answers with no text.
	EmptyCaption = "Checking the list twice."
)

// Fallbacks are shown in place of a caption that could not be generated.
var Fallbacks = []string{
	"Adjusting the reindeer reins.",
	"Drinking a cup of hot milk.",
	"Rechecking the gift list.",
	"Flying through snowy clouds.",
	"Waving to the children below.",
}

// StatusConfig configures the caption service.
type StatusConfig struct {
	// Language the caption is written in
	Language string

	// CacheSize is the number of locations remembered; 0 disables the cache
	CacheSize int

	// CacheTTL is how long a caption is reused for the same location
	CacheTTL time.Duration
}

// StatusService writes one-sentence status captions for a location.
type StatusService struct {
	client *Client
	cfg    StatusConfig
	retry  RetryConfig
	cache  *expirable.LRU[string, string]
	logger zerolog.Logger
}

// NewStatusService creates a caption service.
func NewStatusService(client *Client, cfg StatusConfig, retry RetryConfig, logger zerolog.Logger) *StatusService {
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	s := &StatusService{
		client: client,
		cfg:    cfg,
		retry:  retry,
		logger: logger.With().Str("component", "status").Logger(),
	}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

// StatusPrompt builds the caption prompt for a location.
func StatusPrompt(language, location string) string {
	return fmt.Sprintf("Generate a short, funny, one-sentence status update in %s for Santa Claus "+
		"who is currently near %s. Example: \"Feeding the reindeer some carrots.\"", language, location)
}

// GetStatusCaption returns a caption for the location. Errors are returned
// to the caller, which is expected to substitute one of the Fallbacks.
func (s *StatusService) GetStatusCaption(ctx context.Context, location string) (string, error) {
	if !s.client.HasAPIKey() {
		return NoKeyCaption, nil
	}
	if s.cache != nil {
		if text, ok := s.cache.Get(location); ok {
			return text, nil
		}
	}

	text, err := RetryWithBackoff(ctx, s.retry, s.logger, func() (string, error) {
		return s.client.GenerateContent(ctx, Request{Prompt: StatusPrompt(s.cfg.Language, location)})
	})
	if err != nil {
		return "", fmt.Errorf("status caption for %s: %w", location, err)
	}
	if text == "" {
		return EmptyCaption, nil
	}

	if s.cache != nil {
		s.cache.Add(location, text)
	}
	return text, nil
}
