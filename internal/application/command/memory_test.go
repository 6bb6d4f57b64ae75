package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/checkin"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/profile"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/quest"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/recommendation"
	"github.com/phoenixpath/phoenix-recovery-hub/internal/domain/shared"
)

// In-memory fakes backing the command handler tests. They implement the
// domain repository interfaces over plain maps; Commit/Rollback are
// recorded but not transactional.

// ─────────────────────────────────────────────────────────────────────────────
// State
// ─────────────────────────────────────────────────────────────────────────────

type memState struct {
	mu       sync.Mutex
	profiles map[shared.UserID]*profile.Profile
	progress map[shared.UserID]*profile.Progress
	records  map[string]*quest.Record
	checkins map[string]*checkin.CheckIn
	streaks  map[shared.UserID]*checkin.Streak
	recs     map[string]*recommendation.Recommendation
}

func newMemState() *memState {
	return &memState{
		profiles: make(map[shared.UserID]*profile.Profile),
		progress: make(map[shared.UserID]*profile.Progress),
		records:  make(map[string]*quest.Record),
		checkins: make(map[string]*checkin.CheckIn),
		streaks:  make(map[shared.UserID]*checkin.Streak),
		recs:     make(map[string]*recommendation.Recommendation),
	}
}

func recordKey(userID shared.UserID, key shared.QuestKey) string {
	return string(userID) + "|" + string(key)
}

func dayedKey(userID shared.UserID, day time.Time) string {
	return string(userID) + "|" + shared.DayKey(day)
}

// ─────────────────────────────────────────────────────────────────────────────
// Profile repository
// ─────────────────────────────────────────────────────────────────────────────

type memProfileRepo struct{ s *memState }

func (r *memProfileRepo) Create(_ context.Context, p *profile.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.profiles {
		if existing.Email == p.Email {
			return shared.ErrEmailTaken
		}
	}
	if _, ok := r.s.profiles[p.ID]; ok {
		return shared.ErrAlreadyExists
	}
	r.s.profiles[p.ID] = p.Clone()
	return nil
}

func (r *memProfileRepo) GetByID(_ context.Context, id shared.UserID) (*profile.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (r *memProfileRepo) GetByIDForUpdate(ctx context.Context, id shared.UserID) (*profile.Profile, error) {
	return r.GetByID(ctx, id)
}

func (r *memProfileRepo) GetByEmail(_ context.Context, email shared.Email) (*profile.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.profiles {
		if p.Email == email {
			return p.Clone(), nil
		}
	}
	return nil, shared.ErrProfileNotFound
}

func (r *memProfileRepo) Update(_ context.Context, p *profile.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[p.ID]; !ok {
		return shared.ErrProfileNotFound
	}
	r.s.profiles[p.ID] = p.Clone()
	return nil
}

func (r *memProfileRepo) Delete(_ context.Context, id shared.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.profiles, id)
	return nil
}

func (r *memProfileRepo) ListActive(_ context.Context, threshold time.Duration, _ profile.ListOptions) ([]*profile.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*profile.Profile
	for _, p := range r.s.profiles {
		if !p.IsLapsed(threshold) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *memProfileRepo) FindLapsed(_ context.Context, threshold time.Duration) ([]*profile.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*profile.Profile
	for _, p := range r.s.profiles {
		if p.IsLapsed(threshold) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (r *memProfileRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.profiles), nil
}

func (r *memProfileRepo) Exists(_ context.Context, id shared.UserID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.profiles[id]
	return ok, nil
}

func (r *memProfileRepo) ExistsByEmail(_ context.Context, email shared.Email) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.profiles {
		if p.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress repository
// ─────────────────────────────────────────────────────────────────────────────

type memProgressRepo struct{ s *memState }

func (r *memProgressRepo) Get(_ context.Context, userID shared.UserID) (*profile.Progress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pr, ok := r.s.progress[userID]
	if !ok {
		return profile.NewProgress(userID), nil
	}
	clone := *pr
	return &clone, nil
}

func (r *memProgressRepo) AddXP(_ context.Context, userID shared.UserID, amount int) (*profile.Progress, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pr, ok := r.s.progress[userID]
	if !ok {
		pr = profile.NewProgress(userID)
		r.s.progress[userID] = pr
	}
	pr.AddXP(amount)
	clone := *pr
	return &clone, nil
}

func (r *memProgressRepo) Seed(_ context.Context, userID shared.UserID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.progress[userID]; !ok {
		r.s.progress[userID] = profile.NewProgress(userID)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Quest record repository
// ─────────────────────────────────────────────────────────────────────────────

type memQuestRepo struct{ s *memState }

func (r *memQuestRepo) Upsert(_ context.Context, record *quest.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.records[recordKey(record.UserID, record.QuestKey)] = record.Clone()
	return nil
}

func (r *memQuestRepo) Get(_ context.Context, userID shared.UserID, key shared.QuestKey) (*quest.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.records[recordKey(userID, key)]
	if !ok {
		return nil, shared.ErrQuestRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *memQuestRepo) GetForUpdate(ctx context.Context, userID shared.UserID, key shared.QuestKey) (*quest.Record, error) {
	return r.Get(ctx, userID, key)
}

func (r *memQuestRepo) ListByUser(_ context.Context, userID shared.UserID) ([]*quest.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*quest.Record
	for _, rec := range r.s.records {
		if rec.UserID == userID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestKey < out[j].QuestKey })
	return out, nil
}

func (r *memQuestRepo) CountCompletedInPhase(_ context.Context, userID shared.UserID, phase shared.Phase) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, rec := range r.s.records {
		if rec.UserID == userID && rec.Phase == phase && rec.IsCompleted() {
			count++
		}
	}
	return count, nil
}

func (r *memQuestRepo) CountCompleted(_ context.Context, userID shared.UserID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, rec := range r.s.records {
		if rec.UserID == userID && rec.IsCompleted() {
			count++
		}
	}
	return count, nil
}

func (r *memQuestRepo) ListCompletedSince(_ context.Context, userID shared.UserID, since time.Time) ([]*quest.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*quest.Record
	for _, rec := range r.s.records {
		if rec.UserID == userID && rec.IsCompleted() && !rec.CompletedAt.Before(since) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Check-in repository
// ─────────────────────────────────────────────────────────────────────────────

type memCheckInRepo struct{ s *memState }

func (r *memCheckInRepo) Upsert(_ context.Context, c *checkin.CheckIn) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.checkins[dayedKey(c.UserID, c.Date)] = c
	return nil
}

func (r *memCheckInRepo) Get(_ context.Context, userID shared.UserID, day time.Time) (*checkin.CheckIn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.checkins[dayedKey(userID, day)]
	if !ok {
		return nil, shared.ErrCheckInNotFound
	}
	return c, nil
}

func (r *memCheckInRepo) GetToday(ctx context.Context, userID shared.UserID) (*checkin.CheckIn, error) {
	return r.Get(ctx, userID, time.Now().UTC())
}

func (r *memCheckInRepo) ListRange(_ context.Context, userID shared.UserID, from, to time.Time) ([]*checkin.CheckIn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*checkin.CheckIn
	for _, c := range r.s.checkins {
		if c.UserID == userID && !c.Date.Before(from) && !c.Date.After(to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *memCheckInRepo) ListRecent(ctx context.Context, userID shared.UserID, days int) ([]*checkin.CheckIn, error) {
	now := time.Now().UTC()
	out, err := r.ListRange(ctx, userID, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *memCheckInRepo) GetStreak(_ context.Context, userID shared.UserID) (*checkin.Streak, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.streaks[userID]
	if !ok {
		return checkin.NewStreak(userID), nil
	}
	clone := *s
	return &clone, nil
}

func (r *memCheckInRepo) SaveStreak(_ context.Context, s *checkin.Streak) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *s
	r.s.streaks[s.UserID] = &clone
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Recommendation repository
// ─────────────────────────────────────────────────────────────────────────────

type memRecommendationRepo struct{ s *memState }

func (r *memRecommendationRepo) Upsert(_ context.Context, rec *recommendation.Recommendation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.recs[dayedKey(rec.UserID, rec.Date)] = rec
	return nil
}

func (r *memRecommendationRepo) Get(_ context.Context, userID shared.UserID, day time.Time) (*recommendation.Recommendation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.recs[dayedKey(userID, day)]
	if !ok {
		return nil, shared.ErrRecommendationNotFound
	}
	return rec, nil
}

func (r *memRecommendationRepo) GetToday(ctx context.Context, userID shared.UserID) (*recommendation.Recommendation, error) {
	return r.Get(ctx, userID, time.Now().UTC())
}

func (r *memRecommendationRepo) ListRecent(_ context.Context, userID shared.UserID, limit int) ([]*recommendation.Recommendation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*recommendation.Recommendation
	for _, rec := range r.s.recs {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Unit of work
// ─────────────────────────────────────────────────────────────────────────────

type memUnitOfWork struct {
	s          *memState
	committed  bool
	rolledBack bool
}

func (u *memUnitOfWork) Profiles() profile.Repository         { return &memProfileRepo{s: u.s} }
func (u *memUnitOfWork) Progress() profile.ProgressRepository { return &memProgressRepo{s: u.s} }
func (u *memUnitOfWork) Quests() quest.Repository             { return &memQuestRepo{s: u.s} }
func (u *memUnitOfWork) Commit(_ context.Context) error       { u.committed = true; return nil }
func (u *memUnitOfWork) Rollback(_ context.Context) error     { u.rolledBack = true; return nil }

type memUnitOfWorkFactory struct {
	s    *memState
	last *memUnitOfWork
}

func (f *memUnitOfWorkFactory) Begin(_ context.Context) (profile.UnitOfWork, error) {
	f.last = &memUnitOfWork{s: f.s}
	return f.last, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Event publisher and cache
// ─────────────────────────────────────────────────────────────────────────────

type memEventPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *memEventPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *memEventPublisher) typesSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, string(e.EventType()))
	}
	return out
}

type memPathCache struct {
	mu            sync.Mutex
	statuses      map[shared.UserID]quest.StatusMap
	invalidations int
}

func newMemPathCache() *memPathCache {
	return &memPathCache{statuses: make(map[shared.UserID]quest.StatusMap)}
}

func (c *memPathCache) GetStatuses(_ context.Context, userID shared.UserID) (quest.StatusMap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.statuses[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return m, nil
}

func (c *memPathCache) SetStatuses(_ context.Context, userID shared.UserID, statuses quest.StatusMap, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[userID] = statuses
	return nil
}

func (c *memPathCache) Invalidate(_ context.Context, userID shared.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.statuses, userID)
	c.invalidations++
	return nil
}
