package insights

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"spendsmart/internal/cache"
	"spendsmart/internal/core"
)

const (
	cacheSize = 256
	cacheTTL  = 15 * time.Minute
)

// Store persists generated insights.
type Store interface {
	ReplaceInsights(ctx context.Context, userID, timeframe string, insights []core.Insight) error
	ListInsights(ctx context.Context, userID, timeframe string) ([]core.Insight, error)
}

// Service caches and persists generated insight sets per user and
// timeframe. Regeneration within the cache TTL is served from memory.
type Service struct {
	store Store
	memo  *cache.LRUCache[[]core.Insight]
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		memo:  cache.NewLRUCache[[]core.Insight](cacheSize, cacheTTL),
	}
}

// Cache exposes the memo for registration with a cache manager.
func (s *Service) Cache() *cache.LRUCache[[]core.Insight] {
	return s.memo
}

// Generate evaluates the rules for a user's window and stores the result,
// replacing any previous set for the same timeframe.
func (s *Service) Generate(ctx context.Context, userID, timeframe string, summary core.SpendingSummary, trends core.SpendingTrends) ([]core.Insight, error) {
	key := memoKey(userID, timeframe)
	if cached, ok := s.memo.Get(key); ok {
		return cached, nil
	}

	now := time.Now().UTC()
	generated := Generate(summary, trends, timeframe)
	for i := range generated {
		generated[i].ID = core.NewID()
		generated[i].UserID = userID
		generated[i].Timeframe = timeframe
		generated[i].CreatedAt = now
	}

	if err := s.store.ReplaceInsights(ctx, userID, timeframe, generated); err != nil {
		return nil, fmt.Errorf("persist insights: %w", err)
	}

	s.memo.Set(key, generated)
	slog.InfoContext(ctx, "Generated insights",
		"user_id", userID,
		"timeframe", timeframe,
		"count", len(generated))
	return generated, nil
}

// List returns the stored insight set without regenerating.
func (s *Service) List(ctx context.Context, userID, timeframe string) ([]core.Insight, error) {
	return s.store.ListInsights(ctx, userID, timeframe)
}

// Invalidate drops the cached set so the next Generate recomputes. Called
// after imports change the underlying transactions.
func (s *Service) Invalidate(userID, timeframe string) {
	s.memo.Delete(memoKey(userID, timeframe))
}

func memoKey(userID, timeframe string) string {
	return userID + "|" + timeframe
}
