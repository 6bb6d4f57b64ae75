package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports per-user targeting and percentage-based experiments.
//
// Recovery-first philosophy: experiments never degrade the core loop.
// A user in the 0% bucket of an experimental flag still gets quests,
// check-ins and a recommendation every day.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string // internal user ID
	IsAdmin bool   // is admin user
}

// Predefined feature flag names.
const (
	// === Recommendation Features ===
	FeatureRecommendationsGemini     = "recommendations.gemini"     // LLM generation (off = fallback only)
	FeatureRecommendationsWelcome    = "recommendations.welcome"    // welcome recommendation at signup
	FeatureRecommendationsPrecompute = "recommendations.precompute" // morning precompute job

	// === Quest Path Features ===
	FeaturePathGuestPreview  = "path.guest_preview"  // phase-1 preview without an account
	FeaturePathBeginTracking = "path.begin_tracking" // explicit in_progress state

	// === Check-in Features ===
	FeatureCheckinsNotes   = "checkins.notes"   // free-text notes on check-ins
	FeatureCheckinsStreaks = "checkins.streaks" // streak tracking & events

	// === Engagement Features ===
	FeatureEngagementLapseEvents = "engagement.lapse_events" // publish ProfileLapsedEvent
	FeatureEngagementMotivation  = "engagement.motivation"   // motivational messages in summaries

	// === Experimental Features ===
	FeatureExperimentalWeeklyReport = "experimental.weekly_report" // weekly progress digest
	FeatureExperimentalInsights     = "experimental.insights"      // trend insights from check-in data
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Recommendation features - the Gemini pipeline is core, enabled by default
	ff.features[FeatureRecommendationsGemini] = &Feature{
		Name:           FeatureRecommendationsGemini,
		Description:    "Generate daily recommendations with Gemini",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRecommendationsWelcome] = &Feature{
		Name:           FeatureRecommendationsWelcome,
		Description:    "Generate a welcome recommendation during signup",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureRecommendationsPrecompute] = &Feature{
		Name:           FeatureRecommendationsPrecompute,
		Description:    "Precompute morning recommendations for active users",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Quest path features
	ff.features[FeaturePathGuestPreview] = &Feature{
		Name:           FeaturePathGuestPreview,
		Description:    "Serve the phase-1 path preview to guests",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeaturePathBeginTracking] = &Feature{
		Name:           FeaturePathBeginTracking,
		Description:    "Track explicit quest begin (in_progress)",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Check-in features
	ff.features[FeatureCheckinsNotes] = &Feature{
		Name:           FeatureCheckinsNotes,
		Description:    "Free-text notes on daily check-ins",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCheckinsStreaks] = &Feature{
		Name:           FeatureCheckinsStreaks,
		Description:    "Streak tracking and streak events",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Engagement features
	ff.features[FeatureEngagementLapseEvents] = &Feature{
		Name:           FeatureEngagementLapseEvents,
		Description:    "Publish lapse events for inactive users",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureEngagementMotivation] = &Feature{
		Name:           FeatureEngagementMotivation,
		Description:    "Motivational messages in progress summaries",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalWeeklyReport] = &Feature{
		Name:           FeatureExperimentalWeeklyReport,
		Description:    "Weekly progress digest",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalInsights] = &Feature{
		Name:           FeatureExperimentalInsights,
		Description:    "Trend insights from check-in data",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_RECOMMENDATIONS_GEMINI=false
// Example: FEATURE_EXPERIMENTAL_INSIGHTS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "recommendations.gemini" -> "FEATURE_RECOMMENDATIONS_GEMINI"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID string, featureName string, percent int) bool {
	// Create a consistent hash for this user+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a user.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	feature, ok := ff.features[featureName]
	ff.mu.RUnlock()

	if !ok || !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 || ctx == nil {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.UserID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID string, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// GeminiEnabled checks if LLM generation is enabled for the user.
// Disabled means every recommendation is the static fallback.
func (ff *FeatureFlags) GeminiEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureRecommendationsGemini, ctx)
}

// LapseDetectionEnabled checks if lapse events should be published.
func (ff *FeatureFlags) LapseDetectionEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureEngagementLapseEvents, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
