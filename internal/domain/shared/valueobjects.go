// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// Email represents a user's email address.
type Email string

// Deliberately loose: real validation happens at the mail provider.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValid checks if the email has a plausible format.
func (e Email) IsValid() bool {
	s := string(e)
	return len(s) >= 5 && len(s) <= 254 && emailRegex.MatchString(s)
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// Normalize returns a normalized (lowercase, trimmed) version of the email.
func (e Email) Normalize() Email {
	return Email(strings.ToLower(strings.TrimSpace(string(e))))
}

// NewEmail creates a new Email with validation.
func NewEmail(value string) (Email, error) {
	e := Email(value).Normalize()
	if !e.IsValid() {
		return "", ErrInvalidEmail
	}
	return e, nil
}

// QuestKey represents a stable catalog identifier for a quest.
type QuestKey string

// Quest key format: phase-scoped slug (e.g., "breath-of-dawn", "memory-palace-01").
var questKeyRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// IsValid checks if the quest key format is valid.
func (q QuestKey) IsValid() bool {
	s := string(q)
	return len(s) >= 3 && len(s) <= 64 && questKeyRegex.MatchString(s)
}

// String returns the string representation.
func (q QuestKey) String() string {
	return string(q)
}

// NewQuestKey creates a new QuestKey with validation.
func NewQuestKey(key string) (QuestKey, error) {
	qk := QuestKey(strings.ToLower(strings.TrimSpace(key)))
	if !qk.IsValid() {
		return "", ErrInvalidQuestKey
	}
	return qk, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Phase Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Phase represents a phoenix progression tier.
type Phase int

const (
	MinPhase Phase = 1
	MaxPhase Phase = 4
)

// IsValid checks if the phase is within valid range.
func (p Phase) IsValid() bool {
	return p >= MinPhase && p <= MaxPhase
}

// Int returns the underlying int value.
func (p Phase) Int() int {
	return int(p)
}

// IsFinal returns true if no further advancement is possible.
func (p Phase) IsFinal() bool {
	return p >= MaxPhase
}

// Next returns the next phase, capped at MaxPhase.
func (p Phase) Next() Phase {
	if p.IsFinal() {
		return MaxPhase
	}
	return p + 1
}

// Title returns a human-readable title for the phase.
func (p Phase) Title() string {
	switch p {
	case 1:
		return "Пепел"
	case 2:
		return "Искра"
	case 3:
		return "Пламя"
	case 4:
		return "Полёт"
	default:
		return "?"
	}
}

// NewPhase creates a new Phase with validation.
func NewPhase(value int) (Phase, error) {
	p := Phase(value)
	if !p.IsValid() {
		return 0, ErrInvalidPhase
	}
	return p, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// FlameStrength Value Object
// ═══════════════════════════════════════════════════════════════════════════

// FlameStrength represents the accumulating, phase-scoped readiness score.
type FlameStrength int

const (
	MinFlame FlameStrength = 0
	MaxFlame FlameStrength = 100

	// FlameAdvanceThreshold is the minimum flame required for phase advancement.
	FlameAdvanceThreshold FlameStrength = 60

	// MaxFlameGainPerQuest caps the flame gained from a single completion.
	MaxFlameGainPerQuest = 15
)

// IsValid checks if the flame value is within valid range.
func (f FlameStrength) IsValid() bool {
	return f >= MinFlame && f <= MaxFlame
}

// Int returns the underlying int value.
func (f FlameStrength) Int() int {
	return int(f)
}

// Add adds flame and returns the result, capped at MaxFlame.
func (f FlameStrength) Add(gain int) FlameStrength {
	result := FlameStrength(int(f) + gain)
	if result > MaxFlame {
		return MaxFlame
	}
	if result < MinFlame {
		return MinFlame
	}
	return result
}

// CanAdvance returns true if the flame condition for advancement is met.
func (f FlameStrength) CanAdvance() bool {
	return f >= FlameAdvanceThreshold
}

// NewFlameStrength creates a new FlameStrength with validation.
func NewFlameStrength(value int) (FlameStrength, error) {
	f := FlameStrength(value)
	if !f.IsValid() {
		return 0, ErrInvalidFlame
	}
	return f, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points earned through completed quests.
type XP int

const (
	// XP boundaries
	MinXP XP = 0
	MaxXP XP = 1000000 // 1 million XP cap
)

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP && x <= MaxXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP and returns the result, capped at MaxXP.
func (x XP) Add(amount int) XP {
	result := XP(int(x) + amount)
	if result > MaxXP {
		return MaxXP
	}
	if result < MinXP {
		return MinXP
	}
	return result
}

// Level calculates the level based on XP.
// Each level requires progressively more XP.
func (x XP) Level() Level {
	if x <= 0 {
		return 1
	}
	level := 1
	requiredXP := 100
	totalRequired := 0
	for totalRequired+requiredXP <= int(x) {
		totalRequired += requiredXP
		level++
		requiredXP = 100 * level
	}
	return Level(level)
}

// ProgressToNextLevel returns percentage progress to next level (0-100).
func (x XP) ProgressToNextLevel() int {
	currentLevel := x.Level()
	currentLevelXP := currentLevel.RequiredXP()
	nextLevelXP := (currentLevel + 1).RequiredXP()

	xpInCurrentLevel := int(x) - currentLevelXP
	xpNeededForLevel := nextLevelXP - currentLevelXP

	if xpNeededForLevel == 0 {
		return 100
	}

	return (xpInCurrentLevel * 100) / xpNeededForLevel
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	if amount > int(MaxXP) {
		return MaxXP, nil // Cap at max
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level derived from total XP.
type Level int

const (
	MinLevel Level = 1
	MaxLevel Level = 100
)

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the total XP required to reach this level.
func (l Level) RequiredXP() int {
	if l <= 1 {
		return 0
	}
	total := 0
	for i := Level(1); i < l; i++ {
		total += 100 * int(i)
	}
	return total
}

// ═══════════════════════════════════════════════════════════════════════════
// Check-in Scale Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// MoodScore represents a self-reported mood (1-5).
type MoodScore int

const (
	MinMood MoodScore = 1
	MaxMood MoodScore = 5
)

// IsValid checks if the mood score is within valid range.
func (m MoodScore) IsValid() bool {
	return m >= MinMood && m <= MaxMood
}

// Int returns the underlying int value.
func (m MoodScore) Int() int {
	return int(m)
}

// NewMoodScore creates a new MoodScore with validation.
func NewMoodScore(value int) (MoodScore, error) {
	m := MoodScore(value)
	if !m.IsValid() {
		return 0, ErrInvalidMood
	}
	return m, nil
}

// EnergyScore represents a self-reported energy level (1-5).
type EnergyScore int

const (
	MinEnergy EnergyScore = 1
	MaxEnergy EnergyScore = 5
)

// IsValid checks if the energy score is within valid range.
func (e EnergyScore) IsValid() bool {
	return e >= MinEnergy && e <= MaxEnergy
}

// Int returns the underlying int value.
func (e EnergyScore) Int() int {
	return int(e)
}

// NewEnergyScore creates a new EnergyScore with validation.
func NewEnergyScore(value int) (EnergyScore, error) {
	e := EnergyScore(value)
	if !e.IsValid() {
		return 0, ErrInvalidEnergy
	}
	return e, nil
}

// PainLevel represents a self-reported pain level (0-10).
type PainLevel int

const (
	MinPain PainLevel = 0
	MaxPain PainLevel = 10
)

// IsValid checks if the pain level is within valid range.
func (p PainLevel) IsValid() bool {
	return p >= MinPain && p <= MaxPain
}

// Int returns the underlying int value.
func (p PainLevel) Int() int {
	return int(p)
}

// NewPainLevel creates a new PainLevel with validation.
func NewPainLevel(value int) (PainLevel, error) {
	p := PainLevel(value)
	if !p.IsValid() {
		return 0, ErrInvalidPain
	}
	return p, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// Today returns a TimeRange for today (UTC).
func Today() TimeRange {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour).Add(-time.Nanosecond)
	return TimeRange{From: start, To: end}
}

// LastNDays returns a TimeRange for the last N days.
func LastNDays(n int) TimeRange {
	now := time.Now().UTC()
	return TimeRange{
		From: now.AddDate(0, 0, -n),
		To:   now,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}

// DayKey formats a time as the canonical YYYY-MM-DD key used for
// check-ins and recommendations (always UTC).
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
