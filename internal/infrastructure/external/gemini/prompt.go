package gemini

import (
	"fmt"
	"strings"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"

	"google.golang.org/genai"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROMPT BUILDING
// The prompt carries everything the model may use: profile, Phoenix Path
// state, streak and a week of check-ins. The model is forced into JSON
// via structured output, so no format instructions live in the prompt.
// ══════════════════════════════════════════════════════════════════════════════

const systemInstruction = `You are a supportive recovery coach inside a brain-injury
rehabilitation app. Users follow a gentle gamified program ("Phoenix Path") with
four phases: Embers (1), Spark (2), Flame (3), Soar (4). You pick exactly one
exercise for today from the app's modules, sized to the user's current state.
Be warm and specific. Never give medical advice, never mention medication, and
never push a user who reports high pain or low energy. Respond in the same
language as the user's notes when present, otherwise in English.`

// buildPrompt renders the user context into the prompt body.
func buildPrompt(prompt recommendation.PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User: %s\n", prompt.DisplayName)
	if prompt.InjuryType != "" {
		fmt.Fprintf(&b, "Injury type: %s\n", prompt.InjuryType)
	}
	if len(prompt.RecoveryGoals) > 0 {
		fmt.Fprintf(&b, "Recovery goals: %s\n", strings.Join(prompt.RecoveryGoals, "; "))
	}
	fmt.Fprintf(&b, "Daily goal: %d minutes\n", prompt.DailyGoalMinutes)
	fmt.Fprintf(&b, "Phoenix phase: %d (%s)\n", int(prompt.Phase), prompt.Phase.Title())
	fmt.Fprintf(&b, "Level: %d, total XP: %d\n", int(prompt.Level), int(prompt.TotalXP))
	fmt.Fprintf(&b, "Check-in streak: %d days\n", prompt.Streak)

	if len(prompt.WeekCheckIns) > 0 {
		b.WriteString("\nLast week of check-ins (oldest first, mood/energy 1-5, pain 0-10):\n")
		for _, day := range prompt.WeekCheckIns {
			fmt.Fprintf(&b, "- %s: mood %d, energy %d, pain %d, sleep %.1fh",
				day.Date, day.Mood, day.Energy, day.Pain, day.SleepHours)
			if day.Note != "" {
				fmt.Fprintf(&b, ", note: %q", day.Note)
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\nNo check-ins reported this week.\n")
	}

	if prompt.Today != nil {
		fmt.Fprintf(&b, "\nToday's check-in: mood %d, energy %d, pain %d, sleep %.1fh\n",
			prompt.Today.Mood, prompt.Today.Energy, prompt.Today.Pain, prompt.Today.SleepHours)
		if prompt.Today.Note != "" {
			fmt.Fprintf(&b, "Today's note: %q\n", prompt.Today.Note)
		}
	}

	b.WriteString("\nPick one exercise for today and explain why it fits this user's data.")
	return b.String()
}

// responseSchema constrains the model output to the recommendation payload.
// The module enum is closed: the model cannot invent modules the app
// does not have.
func responseSchema() *genai.Schema {
	modules := recommendation.AllModules()
	moduleValues := make([]string, len(modules))
	for i, m := range modules {
		moduleValues[i] = string(m)
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"module": {
				Type:        genai.TypeString,
				Enum:        moduleValues,
				Description: "App module the exercise belongs to",
			},
			"exercise": {
				Type:        genai.TypeString,
				Description: "Name of the recommended exercise",
			},
			"duration": {
				Type:        genai.TypeInteger,
				Description: "Recommended duration in minutes",
			},
			"reason": {
				Type:        genai.TypeString,
				Description: "Why this exercise fits today's data",
			},
			"message": {
				Type:        genai.TypeString,
				Description: "Short supportive message to the user",
			},
			"insight": {
				Type:        genai.TypeString,
				Description: "One observation drawn from the check-in history",
			},
		},
		Required: []string{"module", "exercise", "duration", "reason", "message", "insight"},
	}
}
