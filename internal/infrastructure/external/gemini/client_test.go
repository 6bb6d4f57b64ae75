package gemini

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"google.golang.org/genai"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "deadline exceeded maps to timeout",
			err:  context.DeadlineExceeded,
			want: shared.ErrGeminiTimeout,
		},
		{
			name: "429 with quota message maps to quota exhausted",
			err:  genai.APIError{Code: 429, Message: "Quota exceeded for quota metric 'GenerateContent requests'"},
			want: shared.ErrGeminiQuotaExhausted,
		},
		{
			name: "plain 429 maps to rate limited",
			err:  genai.APIError{Code: 429, Message: "Resource has been exhausted"},
			want: shared.ErrGeminiRateLimited,
		},
		{
			name: "500 maps to unavailable",
			err:  genai.APIError{Code: 500, Message: "internal error"},
			want: shared.ErrGeminiUnavailable,
		},
		{
			name: "503 maps to unavailable",
			err:  genai.APIError{Code: 503, Message: "overloaded"},
			want: shared.ErrGeminiUnavailable,
		},
		{
			name: "invalid payload maps to invalid response",
			err:  shared.WrapError("gemini", "Parse", shared.ErrInvalidFormat, "bad json", nil),
			want: shared.ErrGeminiInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestClassifyError_UnknownErrorStaysExternal(t *testing.T) {
	got := classifyError(fmt.Errorf("connection reset"))
	assert.ErrorIs(t, got, shared.ErrExternalService)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(genai.APIError{Code: 500}))
	assert.True(t, isTransient(genai.APIError{Code: 503}))
	assert.True(t, isTransient(context.DeadlineExceeded))

	// Rate limit and quota responses must not be retried.
	assert.False(t, isTransient(genai.APIError{Code: 429}))
	assert.False(t, isTransient(genai.APIError{Code: 400}))
	assert.False(t, isTransient(fmt.Errorf("some other error")))
	assert.False(t, isTransient(nil))
}

func TestIsQuotaMessage(t *testing.T) {
	assert.True(t, isQuotaMessage("Quota exceeded for metric"))
	assert.True(t, isQuotaMessage("check your billing details"))
	assert.False(t, isQuotaMessage("Resource has been exhausted (e.g. check rate limits)"))
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}

func TestRateLimiter_BurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.1,
		BurstSize:         2,
		MinInterval:       0,
		WaitTimeout:       time.Millisecond,
	})

	assert.True(t, rl.TryAllow())
	assert.True(t, rl.TryAllow())
	assert.False(t, rl.TryAllow(), "bucket should be empty after the burst")
}

func TestRateLimiter_AllowTimesOut(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.01,
		BurstSize:         1,
		MinInterval:       0,
		WaitTimeout:       10 * time.Millisecond,
	})

	assert.NoError(t, rl.Allow(context.Background()))

	err := rl.Allow(context.Background())
	var rateLimitErr *RateLimitError
	assert.ErrorAs(t, err, &rateLimitErr)
}

func TestRateLimiter_RecordRateLimitHitDrainsBucket(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	before := rl.Status()

	rl.RecordRateLimitHit()
	after := rl.Status()

	assert.Less(t, after.RefillRate, before.RefillRate)
	assert.False(t, rl.TryAllow())
}

func TestRateLimiter_ResetRestoresBucket(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.1,
		BurstSize:         1,
		MinInterval:       0,
		WaitTimeout:       time.Millisecond,
	})

	assert.True(t, rl.TryAllow())
	assert.False(t, rl.TryAllow())

	rl.Reset()
	assert.True(t, rl.TryAllow())
}

func TestRateLimiter_AllowRespectsContextCancel(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.01,
		BurstSize:         1,
		MinInterval:       0,
		WaitTimeout:       time.Minute,
	})
	assert.NoError(t, rl.Allow(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Allow(ctx), context.Canceled)
}
