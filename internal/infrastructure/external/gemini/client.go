// Package gemini implements the Gemini API recommendation generator.
// It is the only component that talks to the LLM; everything else sees
// the recommendation.Generator interface. Failures degrade to the static
// fallback at the application layer - this package only classifies them.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/circuitbreaker"
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/logger"
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/retry"

	"google.golang.org/genai"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Config contains configuration for the Gemini client.
type Config struct {
	// APIKey is the Gemini API key.
	APIKey string

	// Model is the model identifier (e.g. "gemini-2.0-flash").
	Model string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Temperature controls output randomness.
	Temperature float32

	// MaxAttempts is the number of attempts per request (including the first).
	MaxAttempts int

	// RateLimiterConfig for local request pacing.
	RateLimiterConfig RateLimiterConfig

	// FailureThreshold is the number of consecutive failures before the
	// circuit breaker opens.
	FailureThreshold int

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultConfig returns sensible defaults for the free tier.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:            apiKey,
		Model:             DefaultModel,
		Timeout:           30 * time.Second,
		Temperature:       0.7,
		MaxAttempts:       2,
		RateLimiterConfig: DefaultRateLimiterConfig(),
		FailureThreshold:  5,
		BreakerTimeout:    time.Minute,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client generates recommendations via the Gemini API.
// It implements recommendation.Generator.
type Client struct {
	config      Config
	client      *genai.Client
	rateLimiter *RateLimiter
	breaker     *circuitbreaker.CircuitBreaker
	logger      *logger.Logger
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &Client{
		config:      cfg,
		client:      client,
		rateLimiter: NewRateLimiter(cfg.RateLimiterConfig),
		breaker: circuitbreaker.New("gemini",
			circuitbreaker.WithFailureThreshold(cfg.FailureThreshold),
			circuitbreaker.WithTimeout(cfg.BreakerTimeout),
		),
		logger: cfg.Logger.With(logger.Component("gemini_client")),
	}, nil
}

// Generate produces one recommendation for the user on the given day.
func (c *Client) Generate(ctx context.Context, prompt recommendation.PromptContext, day time.Time) (*recommendation.Recommendation, error) {
	if err := c.rateLimiter.Allow(ctx); err != nil {
		var rateLimitErr *RateLimitError
		if errors.As(err, &rateLimitErr) {
			return nil, shared.WrapError("gemini", "Generate", shared.ErrRateLimited,
				"local rate limit reached", err)
		}
		return nil, err
	}

	start := time.Now()
	promptText := buildPrompt(prompt)

	var payload recommendation.Payload
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, func(ctx context.Context) error {
			p, err := c.generateOnce(ctx, promptText)
			if err != nil {
				return err
			}
			payload = p
			return nil
		},
			retry.WithMaxAttempts(c.config.MaxAttempts),
			retry.WithInitialDelay(time.Second),
			retry.WithRetryIf(isTransient),
		)
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return nil, shared.WrapError("gemini", "Generate", shared.ErrServiceUnavailable,
				"circuit breaker open", err)
		}
		return nil, classifyError(err)
	}

	c.logger.Debug("recommendation generated",
		logger.UserID(string(prompt.UserID)),
		logger.String("model", c.config.Model),
		logger.Latency(time.Since(start)),
	)

	return recommendation.New(prompt.UserID, day, payload, recommendation.SourceGemini, c.config.Model)
}

// generateOnce performs a single structured-output request.
func (c *Client) generateOnce(ctx context.Context, promptText string) (recommendation.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx,
		c.config.Model,
		genai.Text(promptText),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			Temperature:       genai.Ptr(c.config.Temperature),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema(),
		},
	)
	if err != nil {
		if isRateLimit(err) {
			c.rateLimiter.RecordRateLimitHit()
		}
		return recommendation.Payload{}, err
	}

	text := resp.Text()
	if text == "" {
		return recommendation.Payload{}, shared.ErrGeminiInvalidResponse
	}

	var payload recommendation.Payload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return recommendation.Payload{}, shared.WrapError("gemini", "Parse", shared.ErrInvalidFormat,
			"response is not valid payload JSON", err)
	}

	// Schema enum keeps the module closed, but the payload still goes
	// through full domain validation before anything persists it.
	if err := payload.Validate(); err != nil {
		return recommendation.Payload{}, shared.WrapError("gemini", "Parse", shared.ErrInvalidFormat,
			"response payload failed validation", err)
	}

	return payload, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// classifyError maps transport errors onto the domain's Gemini sentinels.
func classifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return shared.ErrGeminiTimeout
	case errors.Is(err, shared.ErrInvalidFormat):
		return shared.ErrGeminiInvalidResponse
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 && isQuotaMessage(apiErr.Message):
			return shared.ErrGeminiQuotaExhausted
		case apiErr.Code == 429:
			return shared.ErrGeminiRateLimited
		case apiErr.Code >= 500:
			return shared.ErrGeminiUnavailable
		}
	}

	return shared.WrapError("gemini", "Generate", shared.ErrExternalService,
		"request failed", err)
}

// isTransient reports whether a failed attempt is worth retrying.
// Rate limits and quota exhaustion are not: the caller should fall
// back instead of burning more of the budget.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	return false
}

// isRateLimit reports whether the API pushed back with a 429.
func isRateLimit(err error) bool {
	var apiErr genai.APIError
	return errors.As(err, &apiErr) && apiErr.Code == 429
}

// isQuotaMessage distinguishes daily-quota exhaustion from short-window
// rate limiting. Both arrive as 429 RESOURCE_EXHAUSTED; only the message
// tells them apart.
func isQuotaMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "billing")
}
