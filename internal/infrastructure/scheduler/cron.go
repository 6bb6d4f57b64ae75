package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CronExpression is a parsed 5-field cron expression
// (minute hour day-of-month month day-of-week), evaluated in the
// scheduler's timezone. The worker uses it to anchor the recommendation
// precompute to a local morning hour, e.g. "0 6 * * *".
type CronExpression struct {
	raw      string
	minutes  []int // 0-59
	hours    []int // 0-23
	days     []int // 1-31
	months   []int // 1-12
	weekdays []int // 0-6, 0 = Sunday
}

// ParseCronExpression parses a cron expression string.
// Each field accepts *, */n, n, n-m and comma-separated lists.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	bounds := []struct {
		name     string
		min, max int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day", 1, 31},
		{"month", 1, 12},
		{"weekday", 0, 6},
	}

	parsed := make([][]int, 5)
	for i, b := range bounds {
		values, err := expandCronField(fields[i], b.min, b.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", b.name, err)
		}
		parsed[i] = values
	}

	return &CronExpression{
		raw:      expr,
		minutes:  parsed[0],
		hours:    parsed[1],
		days:     parsed[2],
		months:   parsed[3],
		weekdays: parsed[4],
	}, nil
}

// expandCronField expands a single cron field into the sorted set of
// values it matches within [min, max].
func expandCronField(field string, min, max int) ([]int, error) {
	// Lists expand element by element.
	if strings.Contains(field, ",") {
		var result []int
		for _, part := range strings.Split(field, ",") {
			values, err := expandCronField(strings.TrimSpace(part), min, max)
			if err != nil {
				return nil, err
			}
			result = append(result, values...)
		}
		sort.Ints(result)
		return slices.Compact(result), nil
	}

	step := 1
	if base, stepStr, ok := strings.Cut(field, "/"); ok {
		s, err := strconv.Atoi(stepStr)
		if err != nil || s <= 0 {
			return nil, fmt.Errorf("bad step %q", stepStr)
		}
		step = s
		field = base
	}

	start, end := min, max
	switch {
	case field == "*":
		// Full range.
	case strings.Contains(field, "-"):
		lo, hi, _ := strings.Cut(field, "-")
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return nil, fmt.Errorf("bad range start %q", lo)
		}
		if end, err = strconv.Atoi(hi); err != nil {
			return nil, fmt.Errorf("bad range end %q", hi)
		}
	default:
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", field)
		}
		if v < min || v > max {
			return nil, fmt.Errorf("value %d out of range [%d-%d]", v, min, max)
		}
		if step == 1 {
			return []int{v}, nil
		}
		// "n/step" runs from n to the top of the range.
		start = v
	}

	var result []int
	for i := start; i <= end; i += step {
		if i >= min && i <= max {
			result = append(result, i)
		}
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("field %q matches nothing", field)
	}
	return result, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first time after t that matches the expression.
// Scanning minute by minute is fine at this scale: the worker holds a
// handful of daily jobs, not thousands.
func (ce *CronExpression) Next(after time.Time) time.Time {
	t := after.Add(time.Minute).Truncate(time.Minute)

	// A valid expression matches at least once a year.
	const maxMinutes = 366 * 24 * 60
	for i := 0; i < maxMinutes; i++ {
		if ce.matches(t) {
			return t
		}
		t = t.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return slices.Contains(ce.minutes, t.Minute()) &&
		slices.Contains(ce.hours, t.Hour()) &&
		slices.Contains(ce.days, t.Day()) &&
		slices.Contains(ce.months, int(t.Month())) &&
		slices.Contains(ce.weekdays, int(t.Weekday()))
}

// cronEntry is a registered job with its next due time.
type cronEntry struct {
	name    string
	expr    *CronExpression
	job     Job
	nextRun time.Time
	runs    int64
}

// CronScheduler runs jobs on wall-clock cron schedules. It exists next to
// the interval Scheduler because the recommendation precompute must land
// at a specific local morning hour, not "every N hours since startup".
type CronScheduler struct {
	mu       sync.Mutex
	entries  map[string]*cronEntry
	logger   *slog.Logger
	location *time.Location
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// CronOption configures the CronScheduler.
type CronOption func(*CronScheduler)

// WithLocation sets the timezone cron expressions are evaluated in.
// Morning means the user's morning, not the container's.
func WithLocation(loc *time.Location) CronOption {
	return func(cs *CronScheduler) {
		cs.location = loc
	}
}

// WithCronLogger sets the logger for the cron scheduler.
func WithCronLogger(logger *slog.Logger) CronOption {
	return func(cs *CronScheduler) {
		cs.logger = logger
	}
}

// NewCronScheduler creates a cron scheduler. Jobs are added with AddJob
// before Start.
func NewCronScheduler(opts ...CronOption) *CronScheduler {
	cs := &CronScheduler{
		entries:  make(map[string]*cronEntry),
		logger:   slog.Default(),
		location: time.Local,
		stopCh:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cs)
	}

	return cs
}

// AddJob registers a job under the given cron expression.
func (cs *CronScheduler) AddJob(name string, cronExpr string, job Job) error {
	expr, err := ParseCronExpression(cronExpr)
	if err != nil {
		return fmt.Errorf("cron job %s: %w", name, err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	entry := &cronEntry{
		name:    name,
		expr:    expr,
		job:     job,
		nextRun: expr.Next(time.Now().In(cs.location)),
	}
	cs.entries[name] = entry

	cs.logger.Info("cron job added",
		"job", name,
		"expression", cronExpr,
		"next_run", entry.nextRun.Format(time.RFC3339),
	)

	return nil
}

// Start launches the scheduler loop. It returns immediately.
func (cs *CronScheduler) Start(ctx context.Context) error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return fmt.Errorf("cron scheduler already running")
	}
	cs.running = true
	cs.stopCh = make(chan struct{})
	cs.mu.Unlock()

	cs.logger.Info("cron scheduler started", "timezone", cs.location.String())

	cs.wg.Add(1)
	go cs.run(ctx)

	return nil
}

// Stop stops the loop and waits for in-flight jobs to finish.
func (cs *CronScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	close(cs.stopCh)
	cs.mu.Unlock()

	cs.wg.Wait()
	cs.logger.Info("cron scheduler stopped")
}

// run wakes at the top of every minute and fires whatever is due.
func (cs *CronScheduler) run(ctx context.Context) {
	defer cs.wg.Done()

	timer := time.NewTimer(cs.untilNextMinute())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			cs.logger.Info("cron scheduler context cancelled")
			return

		case <-cs.stopCh:
			return

		case <-timer.C:
			cs.fireDue(ctx)
			timer.Reset(cs.untilNextMinute())
		}
	}
}

func (cs *CronScheduler) untilNextMinute() time.Duration {
	now := time.Now().In(cs.location)
	return time.Until(now.Truncate(time.Minute).Add(time.Minute))
}

// fireDue runs every entry whose nextRun has passed. Each job runs in
// its own goroutine so a slow precompute cannot delay lapse detection.
func (cs *CronScheduler) fireDue(ctx context.Context) {
	now := time.Now().In(cs.location)

	cs.mu.Lock()
	var due []*cronEntry
	for _, entry := range cs.entries {
		if !entry.nextRun.After(now) {
			entry.nextRun = entry.expr.Next(now)
			entry.runs++
			due = append(due, entry)
		}
	}
	cs.mu.Unlock()

	for _, entry := range due {
		cs.logger.Info("running cron job", "job", entry.name, "run_count", entry.runs)

		cs.wg.Add(1)
		go func(e *cronEntry) {
			defer cs.wg.Done()

			start := time.Now()
			err := e.job.Run(ctx)
			duration := time.Since(start)

			if err != nil {
				cs.logger.Error("cron job failed",
					"job", e.name,
					"duration", duration,
					"error", err,
				)
				return
			}
			cs.logger.Info("cron job completed",
				"job", e.name,
				"duration", duration,
			)
		}(entry)
	}
}
