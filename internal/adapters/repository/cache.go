package repository

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/fairway/internal/domain/model"
	"github.com/okian/fairway/pkg/metrics"
)

const defaultCacheSize = 512

// CachingStore decorates a Store with LRU caches for write-once records:
// competition results and analytics snapshots. Everything else passes through.
type CachingStore struct {
	Store

	results   *lru.Cache[string, model.CompetitionResult]
	analytics *lru.Cache[string, model.AnalyticsSnapshot]
}

// cachingTxStore keeps the Transactor capability of the wrapped store visible.
type cachingTxStore struct {
	*CachingStore
	tx Transactor
}

func (c *cachingTxStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return c.tx.WithTx(ctx, fn)
}

// NewCachingStore wraps inner. A non-positive size uses the default. The
// returned Store implements Transactor exactly when inner does.
func NewCachingStore(inner Store, size int) (Store, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	results, err := lru.New[string, model.CompetitionResult](size)
	if err != nil {
		return nil, err
	}
	analytics, err := lru.New[string, model.AnalyticsSnapshot](size)
	if err != nil {
		return nil, err
	}
	cs := &CachingStore{Store: inner, results: results, analytics: analytics}
	if tx, ok := inner.(Transactor); ok {
		return &cachingTxStore{CachingStore: cs, tx: tx}, nil
	}
	return cs, nil
}

func (c *CachingStore) GetResultByContest(ctx context.Context, contestID string) (model.CompetitionResult, error) {
	if r, ok := c.results.Get(contestID); ok {
		metrics.RecordCacheLookup("results", true)
		return cloneResult(r), nil
	}
	metrics.RecordCacheLookup("results", false)

	r, err := c.Store.GetResultByContest(ctx, contestID)
	if err != nil {
		return r, err
	}
	c.results.Add(contestID, cloneResult(r))
	return r, nil
}

func (c *CachingStore) GetAnalytics(ctx context.Context, resultID string) (model.AnalyticsSnapshot, error) {
	if a, ok := c.analytics.Get(resultID); ok {
		metrics.RecordCacheLookup("analytics", true)
		return a, nil
	}
	metrics.RecordCacheLookup("analytics", false)

	a, err := c.Store.GetAnalytics(ctx, resultID)
	if err != nil {
		return a, err
	}
	c.analytics.Add(resultID, a)
	return a, nil
}

// Len reports how many results are cached.
func (c *CachingStore) Len() int {
	return c.results.Len()
}

// Ping forwards to the wrapped store when it can be pinged.
func (c *CachingStore) Ping(ctx context.Context) error {
	if p, ok := c.Store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the wrapped store when it holds resources.
func (c *CachingStore) Close() {
	if closer, ok := c.Store.(interface{ Close() }); ok {
		closer.Close()
	}
	c.results.Purge()
	c.analytics.Purge()
}
