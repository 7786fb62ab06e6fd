package marketdata

import (
	"context"
	"sync"
	"time"
)

// CachedProvider memoizes chain snapshots and quotes with a TTL. The cache
// is an explicit map owned here, keyed by symbol and expiration; consumers
// receive the same immutable snapshot until it expires, never a shared
// mutable structure.
type CachedProvider struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu     sync.Mutex
	quotes map[string]quoteEntry
	chains map[chainCacheKey]chainEntry
}

type chainCacheKey struct {
	symbol     string
	expiration string
}

type quoteEntry struct {
	quote   *Quote
	fetched time.Time
}

type chainEntry struct {
	snapshot *ChainSnapshot
	fetched  time.Time
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps a provider with a snapshot cache. A non-positive
// ttl defaults to 30 seconds.
func NewCachedProvider(inner Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedProvider{
		inner:  inner,
		ttl:    ttl,
		now:    time.Now,
		quotes: make(map[string]quoteEntry),
		chains: make(map[chainCacheKey]chainEntry),
	}
}

// GetQuote returns a cached quote when fresh, otherwise fetches.
func (c *CachedProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	c.mu.Lock()
	if e, ok := c.quotes[symbol]; ok && c.now().Sub(e.fetched) < c.ttl {
		c.mu.Unlock()
		return e.quote, nil
	}
	c.mu.Unlock()

	quote, err := c.inner.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.quotes[symbol] = quoteEntry{quote: quote, fetched: c.now()}
	c.mu.Unlock()
	return quote, nil
}

// GetExpirations always delegates; expiration lists are cheap and change rarely.
func (c *CachedProvider) GetExpirations(ctx context.Context, symbol string) ([]string, error) {
	return c.inner.GetExpirations(ctx, symbol)
}

// GetOptionsChain returns a cached snapshot when fresh, otherwise fetches.
func (c *CachedProvider) GetOptionsChain(ctx context.Context, symbol, expiration string) (*ChainSnapshot, error) {
	key := chainCacheKey{symbol: symbol, expiration: expiration}

	c.mu.Lock()
	if e, ok := c.chains[key]; ok && c.now().Sub(e.fetched) < c.ttl {
		c.mu.Unlock()
		return e.snapshot, nil
	}
	c.mu.Unlock()

	snapshot, err := c.inner.GetOptionsChain(ctx, symbol, expiration)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.chains[key] = chainEntry{snapshot: snapshot, fetched: c.now()}
	c.mu.Unlock()
	return snapshot, nil
}

// LastChain returns the most recently fetched snapshot for a symbol and
// expiration even if stale, or nil if never fetched. The expiry sweep uses
// it as the last known mark source.
func (c *CachedProvider) LastChain(symbol, expiration string) *ChainSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.chains[chainCacheKey{symbol: symbol, expiration: expiration}]; ok {
		return e.snapshot
	}
	return nil
}
