// Package http implements the REST API for Phoenix Recovery Hub.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/command"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/query"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/application/saga"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
	"github.com/phoenixpath/phoenix-recovery-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Phoenix Recovery Hub API",
		"version":     "v1",
		"description": "Backend for the Phoenix Path brain-injury recovery companion",
		"endpoints": map[string]string{
			"health":          "/health",
			"register":        "/api/v1/auth/register",
			"login":           "/api/v1/auth/login",
			"path":            "/api/v1/path",
			"checkins":        "/api/v1/checkins",
			"progress":        "/api/v1/progress",
			"recommendations": "/api/v1/recommendations/today",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type registerRequest struct {
	Email            string   `json:"email"`
	Password         string   `json:"password"`
	DisplayName      string   `json:"display_name"`
	InjuryType       string   `json:"injury_type,omitempty"`
	RecoveryGoals    []string `json:"recovery_goals,omitempty"`
	DailyGoalMinutes int      `json:"daily_goal_minutes,omitempty"`
}

type authResponse struct {
	Token                 string             `json:"token"`
	Profile               profileDTO         `json:"profile"`
	WelcomeRecommendation *recommendationDTO `json:"welcome_recommendation,omitempty"`
}

// handleRegister handles POST /api/v1/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.Onboarding.Execute(r.Context(), saga.OnboardingInput{
		Email:            req.Email,
		Password:         req.Password,
		DisplayName:      req.DisplayName,
		InjuryType:       req.InjuryType,
		RecoveryGoals:    req.RecoveryGoals,
		DailyGoalMinutes: req.DailyGoalMinutes,
	})
	if err != nil {
		if errors.Is(err, shared.ErrEmailTaken) {
			writeJSONError(w, http.StatusConflict, "email_taken", "Email is already registered")
			return
		}
		if errors.Is(err, saga.ErrPasswordTooShort) {
			writeJSONError(w, http.StatusBadRequest, "password_too_short", "Password must be at least 8 characters")
			return
		}
		s.logger.Error("onboarding failed", logger.Err(err))
		writeDomainError(w, err)
		return
	}

	resp := authResponse{
		Token:   result.SessionToken,
		Profile: toProfileDTO(result.Profile),
	}
	if result.WelcomeRecommendation != nil {
		dto := toRecommendationDTO(result.WelcomeRecommendation)
		resp.WelcomeRecommendation = &dto
	}

	writeJSON(w, http.StatusCreated, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin handles POST /api/v1/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	p, token, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		s.logger.Error("login failed", logger.Err(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:   token,
		Profile: toProfileDTO(p),
	})
}

// handleLogout handles POST /api/v1/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := sessionTokenFrom(r.Context())
	if err := s.deps.Auth.Logout(r.Context(), token); err != nil {
		s.logger.Error("logout failed", logger.Err(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// ══════════════════════════════════════════════════════════════════════════════
// QUEST PATH HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetPath handles GET /api/v1/path
// Without a bearer token it serves the guest preview: all phase-1 quests
// available, everything beyond locked.
func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	q := query.GetQuestPathQuery{
		UserID:    string(userIDFrom(r.Context())),
		SkipCache: getQueryParamBool(r, "skip_cache"),
	}

	result, err := s.deps.GetQuestPathHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get quest path", logger.Err(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleBeginQuest handles POST /api/v1/quests/{key}/begin
func (s *Server) handleBeginQuest(w http.ResponseWriter, r *http.Request) {
	questKey := r.PathValue("key")

	result, err := s.deps.BeginQuestHandler.Handle(r.Context(), command.BeginQuestCommand{
		UserID:   string(userIDFrom(r.Context())),
		QuestKey: questKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quest_key": result.QuestKey,
		"status":    result.Status,
	})
}

type completeQuestRequest struct {
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// handleCompleteQuest handles POST /api/v1/quests/{key}/complete
func (s *Server) handleCompleteQuest(w http.ResponseWriter, r *http.Request) {
	questKey := r.PathValue("key")

	var req completeQuestRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
			return
		}
	}

	result, err := s.deps.CompleteQuestHandler.Handle(r.Context(), command.CompleteQuestCommand{
		UserID:        string(userIDFrom(r.Context())),
		QuestKey:      questKey,
		Metadata:      req.Metadata,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quest_key":         result.QuestKey,
		"xp_earned":         result.XPEarned,
		"new_flame":         result.NewFlame,
		"new_phase":         result.NewPhase,
		"phase_advanced":    result.Advanced,
		"already_completed": result.AlreadyCompleted,
		"completed_at":      result.CompletedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECK-IN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type checkInRequest struct {
	Mood       int     `json:"mood"`
	Energy     int     `json:"energy"`
	Pain       int     `json:"pain"`
	SleepHours float64 `json:"sleep_hours"`
	Note       string  `json:"note,omitempty"`
}

// handleRecordCheckIn handles POST /api/v1/checkins
func (s *Server) handleRecordCheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.RecordCheckInHandler.Handle(r.Context(), command.RecordCheckInCommand{
		UserID:     string(userIDFrom(r.Context())),
		Mood:       req.Mood,
		Energy:     req.Energy,
		Pain:       req.Pain,
		SleepHours: req.SleepHours,
		Note:       req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Overwrote {
		status = http.StatusOK
	}

	writeJSON(w, status, map[string]interface{}{
		"date":           result.Date,
		"current_streak": result.CurrentStreak,
		"best_streak":    result.BestStreak,
		"streak_broken":  result.StreakBroken,
		"overwrote":      result.Overwrote,
	})
}

// handleCheckInHistory handles GET /api/v1/checkins
func (s *Server) handleCheckInHistory(w http.ResponseWriter, r *http.Request) {
	q := query.GetCheckInHistoryQuery{
		UserID: string(userIDFrom(r.Context())),
		Days:   getQueryParamInt(r, "days", 30),
	}

	result, err := s.deps.GetCheckInHistoryHandler.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleProgressSummary handles GET /api/v1/progress
func (s *Server) handleProgressSummary(w http.ResponseWriter, r *http.Request) {
	q := query.GetProgressSummaryQuery{
		UserID:      string(userIDFrom(r.Context())),
		IncludeWeek: true,
		HistoryDays: getQueryParamInt(r, "days", 7),
	}

	result, err := s.deps.GetProgressSummaryHandler.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type recommendationDTO struct {
	Date     string                 `json:"date"`
	Payload  recommendation.Payload `json:"payload"`
	Source   string                 `json:"source"`
	Model    string                 `json:"model,omitempty"`
	Degraded bool                   `json:"degraded,omitempty"`
}

// degradedRecommendationBody is the response body for a failed generation.
// Fallback has the same shape as the 200 payload so clients render it
// through the same code path.
type degradedRecommendationBody struct {
	Fallback recommendationDTO `json:"fallback"`
	Reason   string            `json:"reason"`
}

// handleTodayRecommendation handles GET /api/v1/recommendations/today
//
// A stored or freshly generated recommendation is a 200. When the LLM
// call fails, the status reflects the upstream cause (429 rate limit,
// 402 quota exhausted, 500 otherwise) and the body carries the static
// fallback for the user's phase. The fallback is never persisted, and
// the home screen is never empty. A deliberately disabled generator is
// not a failure: the fallback comes back as a plain 200 with
// degraded=true.
func (s *Server) handleTodayRecommendation(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GenerateRecommendationHandler.Handle(r.Context(), command.GenerateRecommendationCommand{
		UserID: string(userIDFrom(r.Context())),
		Day:    time.Now().UTC(),
		Force:  getQueryParamBool(r, "force"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := toRecommendationDTO(result.Recommendation)
	dto.Degraded = result.Degraded

	if !result.Degraded || result.Cause == nil {
		writeJSON(w, http.StatusOK, dto)
		return
	}

	status, reason := degradedRecommendationStatus(result.Cause)
	writeJSON(w, status, degradedRecommendationBody{
		Fallback: dto,
		Reason:   reason,
	})
}

// degradedRecommendationStatus maps an upstream generation failure onto
// the response status and a machine-readable reason.
func degradedRecommendationStatus(cause error) (int, string) {
	switch {
	case errors.Is(cause, shared.ErrQuotaExhausted):
		return http.StatusPaymentRequired, "quota_exhausted"
	case errors.Is(cause, shared.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "generation_failed"
	}
}

// handleRecommendationHistory handles GET /api/v1/recommendations/history
func (s *Server) handleRecommendationHistory(w http.ResponseWriter, r *http.Request) {
	q := query.GetRecommendationHistoryQuery{
		UserID: string(userIDFrom(r.Context())),
		Limit:  getQueryParamInt(r, "limit", 14),
	}

	result, err := s.deps.GetRecommendationHistoryHandler.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type profileDTO struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name"`
	InjuryType       string    `json:"injury_type,omitempty"`
	RecoveryGoals    []string  `json:"recovery_goals,omitempty"`
	DailyGoalMinutes int       `json:"daily_goal_minutes"`
	PhoenixPhase     int       `json:"phoenix_phase"`
	FlameStrength    int       `json:"flame_strength"`
	CreatedAt        time.Time `json:"created_at"`
}

func toProfileDTO(p *profile.Profile) profileDTO {
	return profileDTO{
		ID:               string(p.ID),
		Email:            string(p.Email),
		DisplayName:      p.DisplayName,
		InjuryType:       p.InjuryType,
		RecoveryGoals:    p.RecoveryGoals,
		DailyGoalMinutes: p.DailyGoalMinutes,
		PhoenixPhase:     int(p.PhoenixPhase),
		FlameStrength:    int(p.FlameStrength),
		CreatedAt:        p.CreatedAt,
	}
}

func toRecommendationDTO(rec *recommendation.Recommendation) recommendationDTO {
	return recommendationDTO{
		Date:    rec.Date.Format("2006-01-02"),
		Payload: rec.Payload,
		Source:  string(rec.Source),
		Model:   rec.Model,
	}
}

// handleGetProfile handles GET /api/v1/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.ProfileRepo.GetByID(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

type updateProfileRequest struct {
	DisplayName      *string   `json:"display_name,omitempty"`
	InjuryType       *string   `json:"injury_type,omitempty"`
	RecoveryGoals    *[]string `json:"recovery_goals,omitempty"`
	DailyGoalMinutes *int      `json:"daily_goal_minutes,omitempty"`
}

// handleUpdateProfile handles PATCH /api/v1/profile
// Absent fields are left untouched.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	result, err := s.deps.UpdateProfileHandler.Handle(r.Context(), command.UpdateProfileCommand{
		UserID:           string(userIDFrom(r.Context())),
		DisplayName:      req.DisplayName,
		InjuryType:       req.InjuryType,
		RecoveryGoals:    req.RecoveryGoals,
		DailyGoalMinutes: req.DailyGoalMinutes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileDTO(result.Profile))
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes a JSON request body.
func decodeBody(r *http.Request, dest interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dest)
}
