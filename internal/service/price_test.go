package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"RewardLedger/internal/apperr"
	"RewardLedger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	calls  int
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchPrices(_ context.Context, mints []string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64)
	for _, m := range mints {
		if p, ok := f.prices[m]; ok {
			out[m] = p
		}
	}
	return out, nil
}

type staticMints []string

func (s staticMints) TokenMints(context.Context) ([]string, error) { return s, nil }

type priceClock struct{ t time.Time }

func (c *priceClock) Now() time.Time { return c.t }

func newPriceFixture(fetcher *fakeFetcher) (*PriceService, *repository.LocalPriceCache, *priceClock) {
	clock := &priceClock{t: time.Unix(1_700_000_000, 0)}
	cache := repository.NewLocalPriceCache(repository.PriceTTL{Fresh: time.Minute, Stale: 15 * time.Minute, Now: clock.Now})
	svc := NewPriceService(cache, fetcher, staticMints{"mintA", "mintB"}, time.Second, testLogger())
	return svc, cache, clock
}

func TestPriceReadThrough(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string]float64{"mintA": 1.5}}
	svc, _, _ := newPriceFixture(fetcher)
	ctx := context.Background()

	q, err := svc.Price(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, PriceSourceFeed, q.Source)
	assert.Equal(t, 1.5, q.PriceUSD)

	q, err = svc.Price(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, PriceSourceCache, q.Source)
	assert.Equal(t, 1, fetcher.calls)
}

func TestPriceFallsBackToStale(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string]float64{}}
	svc, cache, clock := newPriceFixture(fetcher)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "mintA", 2.0))

	clock.t = clock.t.Add(5 * time.Minute)
	fetcher.err = errors.New("provider down")
	q, err := svc.Price(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, PriceSourceStale, q.Source)
	assert.Equal(t, 2.0, q.PriceUSD)

	clock.t = clock.t.Add(time.Hour)
	_, err = svc.Price(ctx, "mintA")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = svc.Price(ctx, " ")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestRefreshAll(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string]float64{"mintA": 1.1, "mintB": 2.2}}
	svc, cache, _ := newPriceFixture(fetcher)
	ctx := context.Background()

	n, err := svc.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	p, ok := cache.Get(ctx, "mintB")
	require.True(t, ok)
	assert.Equal(t, 2.2, p)

	fetcher.err = errors.New("provider down")
	_, err = svc.RefreshAll(ctx)
	assert.Error(t, err)
}

func TestPriceWithoutFetcher(t *testing.T) {
	cache := repository.NewLocalPriceCache(repository.PriceTTL{Fresh: time.Minute, Stale: time.Hour})
	svc := NewPriceService(cache, nil, nil, 0, testLogger())

	_, err := svc.Price(context.Background(), "mintA")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	n, err := svc.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPriceSchedulerRejectsBadCron(t *testing.T) {
	svc := NewPriceService(repository.NewLocalPriceCache(repository.PriceTTL{Fresh: time.Minute, Stale: time.Hour}), nil, nil, 0, testLogger())
	_, err := NewPriceScheduler(svc, "not a cron", testLogger())
	assert.Error(t, err)

	s, err := NewPriceScheduler(svc, "*/5 * * * *", testLogger())
	require.NoError(t, err)
	s.Start()
	assert.NoError(t, s.Stop())
}
