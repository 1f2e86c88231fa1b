package scheduler

import (
	"context"
	"fmt"
	"time"

	"portfolio-tracker-go/internal/config"
	"portfolio-tracker-go/internal/models"
	"portfolio-tracker-go/internal/notify"
	"portfolio-tracker-go/internal/store"

	"go.uber.org/zap"
)

// FetchFunc is one category's fetch-and-persist routine for a platform.
// It returns the fetched payload so the scheduler can place it in the
// cache together with the new timestamp.
type FetchFunc func(ctx context.Context, platform string) (any, error)

// Scheduler decides per category and platform whether a refresh is due,
// runs the fetch routine with bounded retries, and records the refresh in
// both the store and the cache on success.
type Scheduler struct {
	logger   *zap.Logger
	cfg      config.Scheduler
	stamps   *store.Repository[models.UpdateStamp]
	cache    *Cache
	notifier notify.Notifier
	clock    func() time.Time
	fetchers map[Category]FetchFunc
}

// NewScheduler creates a scheduler; a nil clock defaults to time.Now.
func NewScheduler(
	logger *zap.Logger,
	cfg config.Scheduler,
	stamps *store.Repository[models.UpdateStamp],
	cache *Cache,
	notifier notify.Notifier,
	clock func() time.Time,
) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		logger:   logger,
		cfg:      cfg,
		stamps:   stamps,
		cache:    cache,
		notifier: notifier,
		clock:    clock,
		fetchers: make(map[Category]FetchFunc),
	}
}

// Register binds a category to its fetch-and-persist routine.
func (s *Scheduler) Register(category Category, fn FetchFunc) {
	s.fetchers[category] = fn
}

// RefreshIfStale refreshes one category for one platform when its last
// update is older than the configured interval. A fresh stamp makes the
// call a no-op. Exhausted retries on a critical category escalate through
// the notifier; the escalation itself is best-effort.
func (s *Scheduler) RefreshIfStale(ctx context.Context, category Category, platform string) error {
	fn, ok := s.fetchers[category]
	if !ok {
		return fmt.Errorf("no fetch routine registered for category %q", category)
	}

	interval := s.cfg.IntervalFor(category.String())
	last := s.lastRefreshed(ctx, category, platform)
	now := s.clock()
	if now.Sub(last) <= interval {
		return nil
	}

	l := s.logger.With(
		zap.String("category", category.String()),
		zap.String("platform", platform),
	)
	l.Debug("Data stale, refreshing", zap.Time("last_refreshed", last))

	payload, err := s.fetchWithRetries(ctx, fn, platform, l)
	if err != nil {
		l.Error("Refresh failed after all retries", zap.Error(err))
		if s.cfg.IsCritical(category.String()) {
			s.escalate(ctx, category, platform, err)
		}
		return fmt.Errorf("refresh %s/%s: %w", category, platform, err)
	}

	return s.recordRefresh(ctx, category, platform, payload, interval)
}

// fetchWithRetries runs the routine up to MaxRetries times with linearly
// increasing backoff.
func (s *Scheduler) fetchWithRetries(ctx context.Context, fn FetchFunc, platform string, l *zap.Logger) (any, error) {
	maxRetries := s.cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	delayStep := time.Duration(s.cfg.RetryDelay) * time.Second

	var payload any
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if payload, err = fn(ctx, platform); err == nil {
			return payload, nil
		}
		if attempt == maxRetries {
			break
		}
		backoff := time.Duration(attempt) * delayStep
		l.Warn("Refresh attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, err
}

// lastRefreshed consults the cache first and falls back to the persisted
// stamp; a missing stamp reads as the zero time, forcing a refresh.
func (s *Scheduler) lastRefreshed(ctx context.Context, category Category, platform string) time.Time {
	if _, storedAt, ok := s.cache.Get(CacheKey(category, platform)); ok {
		return storedAt
	}

	doc, err := s.stamps.FetchOne(ctx, "category = ? AND platform = ?", category.String(), platform)
	if err != nil {
		s.logger.Warn("Could not read update stamp, assuming stale",
			zap.String("category", category.String()),
			zap.Error(err),
		)
		return time.Time{}
	}
	if doc == nil {
		return time.Time{}
	}
	return time.Unix(doc.RefreshedAt, 0)
}

// recordRefresh persists the stamp and then refreshes the cache entry, so
// no reader sees a fresh cache timestamp without the data behind it
// already persisted.
func (s *Scheduler) recordRefresh(ctx context.Context, category Category, platform string, payload any, ttl time.Duration) error {
	now := s.clock()
	doc := &models.UpdateStamp{
		Category:    category.String(),
		Platform:    platform,
		RefreshedAt: now.Unix(),
	}
	err := s.stamps.Upsert(ctx, []string{"category", "platform"}, []string{"refreshed_at", "updated_at"}, doc)
	if err != nil {
		return fmt.Errorf("persist update stamp: %w", err)
	}
	s.cache.Set(CacheKey(category, platform), payload, ttl)
	return nil
}

// escalate sends a critical-failure alert; its own failure is logged and
// swallowed.
func (s *Scheduler) escalate(ctx context.Context, category Category, platform string, cause error) {
	subject := fmt.Sprintf("Critical refresh failure: %s/%s", category, platform)
	if err := s.notifier.Alert(ctx, subject, cause.Error()); err != nil {
		s.logger.Error("Escalation alert failed",
			zap.String("category", category.String()),
			zap.String("platform", platform),
			zap.Error(err),
		)
	}
}
