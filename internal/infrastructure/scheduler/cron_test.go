package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"morning precompute", "0 6 * * *", false},
		{"every five minutes", "*/5 * * * *", false},
		{"list and range", "0,30 9-17 * * 1-5", false},
		{"too few fields", "0 6 * *", true},
		{"minute out of range", "60 * * * *", true},
		{"bad step", "*/0 * * * *", true},
		{"garbage", "six in the morning", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCronExpressionNext(t *testing.T) {
	// Thursday 2026-08-27 21:30 UTC.
	base := time.Date(2026, 8, 27, 21, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			name: "daily morning rolls to next day",
			expr: "0 6 * * *",
			want: time.Date(2026, 8, 28, 6, 0, 0, 0, time.UTC),
		},
		{
			name: "same hour later minute",
			expr: "45 21 * * *",
			want: time.Date(2026, 8, 27, 21, 45, 0, 0, time.UTC),
		},
		{
			name: "weekly on sunday",
			expr: "0 0 * * 0",
			want: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "step minutes",
			expr: "*/15 * * * *",
			want: time.Date(2026, 8, 27, 21, 45, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.Next(base))
		})
	}
}

func TestCronExpressionNextSkipsCurrentMinute(t *testing.T) {
	expr, err := ParseCronExpression("30 21 * * *")
	require.NoError(t, err)

	// Already exactly on the match: the next occurrence is tomorrow,
	// otherwise a job firing at 21:30:00 would be scheduled for 21:30 again.
	at := time.Date(2026, 8, 27, 21, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 28, 21, 30, 0, 0, time.UTC), expr.Next(at))
}

func TestIntervalScheduleNext(t *testing.T) {
	s := NewIntervalSchedule(45 * time.Minute)

	at := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(45*time.Minute), s.Next(at))
	assert.Equal(t, "every 45m0s", s.String())
}
