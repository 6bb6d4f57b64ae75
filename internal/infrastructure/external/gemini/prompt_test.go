package gemini

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

func TestBuildPrompt_FullContext(t *testing.T) {
	prompt := recommendation.PromptContext{
		UserID:           shared.UserID("user1"),
		DisplayName:      "Aigerim",
		InjuryType:       "concussion",
		RecoveryGoals:    []string{"return to work", "read for 30 minutes"},
		DailyGoalMinutes: 20,
		Phase:            shared.Phase(2),
		Level:            shared.Level(4),
		TotalXP:          shared.XP(850),
		Streak:           6,
		WeekCheckIns: []recommendation.DaySnapshot{
			{Date: "2026-08-25", Mood: 3, Energy: 2, Pain: 4, SleepHours: 7.5},
			{Date: "2026-08-26", Mood: 4, Energy: 3, Pain: 2, SleepHours: 8, Note: "headache in the evening"},
		},
		Today: &recommendation.DaySnapshot{
			Date: "2026-08-27", Mood: 4, Energy: 4, Pain: 1, SleepHours: 8.5, Note: "feeling good",
		},
	}

	text := buildPrompt(prompt)

	assert.Contains(t, text, "User: Aigerim")
	assert.Contains(t, text, "Injury type: concussion")
	assert.Contains(t, text, "return to work; read for 30 minutes")
	assert.Contains(t, text, "Daily goal: 20 minutes")
	assert.Contains(t, text, "Phoenix phase: 2 (Spark)")
	assert.Contains(t, text, "Check-in streak: 6 days")
	assert.Contains(t, text, "2026-08-26: mood 4, energy 3, pain 2, sleep 8.0h")
	assert.Contains(t, text, `"headache in the evening"`)
	assert.Contains(t, text, "Today's check-in: mood 4, energy 4, pain 1, sleep 8.5h")
	assert.Contains(t, text, `"feeling good"`)

	// Week must stay oldest first.
	first := strings.Index(text, "2026-08-25")
	second := strings.Index(text, "2026-08-26")
	assert.Less(t, first, second)
}

func TestBuildPrompt_MinimalContext(t *testing.T) {
	prompt := recommendation.PromptContext{
		UserID:           shared.UserID("user1"),
		DisplayName:      "Marat",
		DailyGoalMinutes: 15,
		Phase:            shared.Phase(1),
	}

	text := buildPrompt(prompt)

	assert.Contains(t, text, "User: Marat")
	assert.Contains(t, text, "No check-ins reported this week.")
	assert.NotContains(t, text, "Injury type:")
	assert.NotContains(t, text, "Recovery goals:")
	assert.NotContains(t, text, "Today's check-in:")
}

func TestResponseSchema_ModuleEnumClosed(t *testing.T) {
	schema := responseSchema()
	require.NotNil(t, schema)

	moduleSchema, ok := schema.Properties["module"]
	require.True(t, ok)

	modules := recommendation.AllModules()
	require.Len(t, moduleSchema.Enum, len(modules))
	for _, m := range modules {
		assert.Contains(t, moduleSchema.Enum, string(m))
	}
}

func TestResponseSchema_AllFieldsRequired(t *testing.T) {
	schema := responseSchema()

	for _, field := range []string{"module", "exercise", "duration", "reason", "message", "insight"} {
		assert.Contains(t, schema.Required, field)
		assert.Contains(t, schema.Properties, field)
	}
}
