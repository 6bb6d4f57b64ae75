// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Profile events
	EventProfileRegistered EventType = "profile.registered"
	EventProfileUpdated    EventType = "profile.updated"
	EventProfileLapsed     EventType = "profile.lapsed"

	// Quest events
	EventQuestBegun     EventType = "quest.begun"
	EventQuestCompleted EventType = "quest.completed"
	EventXPGained       EventType = "quest.xp_gained"
	EventPhaseAdvanced  EventType = "quest.phase_advanced"
	EventFlameIgnited   EventType = "quest.flame_ignited"

	// Check-in events
	EventCheckInRecorded EventType = "checkin.recorded"
	EventStreakUpdated   EventType = "checkin.streak_updated"
	EventStreakBroken    EventType = "checkin.streak_broken"

	// Recommendation events
	EventRecommendationGenerated EventType = "recommendation.generated"
	EventRecommendationFellBack  EventType = "recommendation.fell_back"

	// System events
	EventCacheRefreshed EventType = "system.cache_refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// ProfileRegisteredEvent is emitted when a new user registers.
type ProfileRegisteredEvent struct {
	BaseEvent
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	InjuryType  string `json:"injury_type"`
}

// Payload implements Event interface.
func (e ProfileRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":        e.Email,
		"display_name": e.DisplayName,
		"injury_type":  e.InjuryType,
	}
}

// NewProfileRegisteredEvent creates a new ProfileRegisteredEvent.
func NewProfileRegisteredEvent(userID, email, displayName, injuryType string) ProfileRegisteredEvent {
	return ProfileRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventProfileRegistered, userID),
		Email:       email,
		DisplayName: displayName,
		InjuryType:  injuryType,
	}
}

// ProfileLapsedEvent is emitted when a user has been inactive for too long.
type ProfileLapsedEvent struct {
	BaseEvent
	UserID        string    `json:"user_id"`
	DaysInactive  int       `json:"days_inactive"`
	LastCheckInAt time.Time `json:"last_checkin_at"`
}

// Payload implements Event interface.
func (e ProfileLapsedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"days_inactive":   e.DaysInactive,
		"last_checkin_at": e.LastCheckInAt.Format(time.RFC3339),
	}
}

// NewProfileLapsedEvent creates a new ProfileLapsedEvent.
func NewProfileLapsedEvent(userID string, daysInactive int, lastCheckInAt time.Time) ProfileLapsedEvent {
	return ProfileLapsedEvent{
		BaseEvent:     NewBaseEvent(EventProfileLapsed, userID),
		UserID:        userID,
		DaysInactive:  daysInactive,
		LastCheckInAt: lastCheckInAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quest Events
// ═══════════════════════════════════════════════════════════════════════════

// QuestBegunEvent is emitted when a user starts a quest.
type QuestBegunEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	QuestKey string `json:"quest_key"`
	Phase    int    `json:"phase"`
}

// Payload implements Event interface.
func (e QuestBegunEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"quest_key": e.QuestKey,
		"phase":     e.Phase,
	}
}

// NewQuestBegunEvent creates a new QuestBegunEvent.
func NewQuestBegunEvent(userID, questKey string, phase int) QuestBegunEvent {
	return QuestBegunEvent{
		BaseEvent: NewBaseEvent(EventQuestBegun, userID),
		UserID:    userID,
		QuestKey:  questKey,
		Phase:     phase,
	}
}

// QuestCompletedEvent is emitted when a user completes a quest.
type QuestCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	QuestKey string `json:"quest_key"`
	Phase    int    `json:"phase"`
	XPEarned int    `json:"xp_earned"`
	NewFlame int    `json:"new_flame"`
	Repeat   bool   `json:"repeat"` // true when the quest was already completed before
}

// Payload implements Event interface.
func (e QuestCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"quest_key": e.QuestKey,
		"phase":     e.Phase,
		"xp_earned": e.XPEarned,
		"new_flame": e.NewFlame,
		"repeat":    e.Repeat,
	}
}

// NewQuestCompletedEvent creates a new QuestCompletedEvent.
func NewQuestCompletedEvent(userID, questKey string, phase, xpEarned, newFlame int) QuestCompletedEvent {
	return QuestCompletedEvent{
		BaseEvent: NewBaseEvent(EventQuestCompleted, userID),
		UserID:    userID,
		QuestKey:  questKey,
		Phase:     phase,
		XPEarned:  xpEarned,
		NewFlame:  newFlame,
	}
}

// AsRepeat marks the event as a re-completion (no XP granted).
func (e QuestCompletedEvent) AsRepeat() QuestCompletedEvent {
	e.Repeat = true
	e.XPEarned = 0
	return e
}

// XPGainedEvent is emitted when a user gains XP.
type XPGainedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	QuestKey string `json:"quest_key,omitempty"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"quest_key": e.QuestKey,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID string, amount, newTotal int, questKey string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		QuestKey:  questKey,
	}
}

// PhaseAdvancedEvent is emitted when a user's phoenix phase advances.
type PhaseAdvancedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	OldPhase     int    `json:"old_phase"`
	NewPhase     int    `json:"new_phase"`
	TriggerQuest string `json:"trigger_quest"`
}

// Payload implements Event interface.
func (e PhaseAdvancedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"old_phase":     e.OldPhase,
		"new_phase":     e.NewPhase,
		"trigger_quest": e.TriggerQuest,
	}
}

// NewPhaseAdvancedEvent creates a new PhaseAdvancedEvent.
func NewPhaseAdvancedEvent(userID string, oldPhase, newPhase int, triggerQuest string) PhaseAdvancedEvent {
	return PhaseAdvancedEvent{
		BaseEvent:    NewBaseEvent(EventPhaseAdvanced, userID),
		UserID:       userID,
		OldPhase:     oldPhase,
		NewPhase:     newPhase,
		TriggerQuest: triggerQuest,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Check-in Events
// ═══════════════════════════════════════════════════════════════════════════

// CheckInRecordedEvent is emitted when a user submits a daily check-in.
type CheckInRecordedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Date   string `json:"date"` // YYYY-MM-DD
	Mood   int    `json:"mood"`
	Energy int    `json:"energy"`
}

// Payload implements Event interface.
func (e CheckInRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"date":    e.Date,
		"mood":    e.Mood,
		"energy":  e.Energy,
	}
}

// NewCheckInRecordedEvent creates a new CheckInRecordedEvent.
func NewCheckInRecordedEvent(userID, date string, mood, energy int) CheckInRecordedEvent {
	return CheckInRecordedEvent{
		BaseEvent: NewBaseEvent(EventCheckInRecorded, userID),
		UserID:    userID,
		Date:      date,
		Mood:      mood,
		Energy:    energy,
	}
}

// StreakBrokenEvent is emitted when a user's daily check-in streak is broken.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previousStreak, daysMissed int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		UserID:         userID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Recommendation Events
// ═══════════════════════════════════════════════════════════════════════════

// RecommendationGeneratedEvent is emitted when a daily recommendation is produced.
type RecommendationGeneratedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Module string `json:"module"`
	Source string `json:"source"` // "gemini" or "fallback"
}

// Payload implements Event interface.
func (e RecommendationGeneratedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"date":    e.Date,
		"module":  e.Module,
		"source":  e.Source,
	}
}

// NewRecommendationGeneratedEvent creates a new RecommendationGeneratedEvent.
func NewRecommendationGeneratedEvent(userID, date, module, source string) RecommendationGeneratedEvent {
	return RecommendationGeneratedEvent{
		BaseEvent: NewBaseEvent(EventRecommendationGenerated, userID),
		UserID:    userID,
		Date:      date,
		Module:    module,
		Source:    source,
	}
}

// RecommendationFellBackEvent is emitted when the LLM call failed and a
// static recommendation was served instead.
type RecommendationFellBackEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Cause  string `json:"cause"`
}

// Payload implements Event interface.
func (e RecommendationFellBackEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"date":    e.Date,
		"cause":   e.Cause,
	}
}

// NewRecommendationFellBackEvent creates a new RecommendationFellBackEvent.
func NewRecommendationFellBackEvent(userID, date, cause string) RecommendationFellBackEvent {
	return RecommendationFellBackEvent{
		BaseEvent: NewBaseEvent(EventRecommendationFellBack, userID),
		UserID:    userID,
		Date:      date,
		Cause:     cause,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
