package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

type fetchResult struct {
	p   *Payload
	err error
}

// fakeSource returns results in order (the last one repeats). When gate is
// set every call blocks until the gate is closed or the fetch context ends.
type fakeSource struct {
	mu      sync.Mutex
	calls   int
	configs []ProviderConfig
	results []fetchResult

	gate    chan struct{}
	entered chan struct{}
}

func newFakeSource(results ...fetchResult) *fakeSource {
	return &fakeSource{results: results, entered: make(chan struct{}, 64)}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, cfg ProviderConfig) (*Payload, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.configs = append(f.configs, cfg)
	gate := f.gate
	f.mu.Unlock()

	f.entered <- struct{}{}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r := f.results[min(idx, len(f.results)-1)]
	return r.p, r.err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticConfigs struct {
	cfg ProviderConfig
	err error
}

func (s staticConfigs) LoadConfig(context.Context) (ProviderConfig, error) { return s.cfg, s.err }
func (s staticConfigs) SaveConfig(context.Context, ProviderConfig) error   { return nil }

func samplePayload(temp float64) *Payload {
	return &Payload{Current: Current{Temperature: temp, Summary: "Sunny", Icon: "sunny"}}
}

func waitEntered(t *testing.T, src *fakeSource) {
	t.Helper()
	select {
	case <-src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch was not started")
	}
}

// waitJoins blocks until n callers have joined the running fetch.
func waitJoins(t *testing.T, c *Cache, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.inflight != nil && c.inflight.joins >= n
	}, 2*time.Second, time.Millisecond)
}

type getResult struct {
	p   *Payload
	err error
}

func concurrentGets(c *Cache, n int) <-chan getResult {
	out := make(chan getResult, n)
	for i := 0; i < n; i++ {
		go func() {
			p, err := c.Get(context.Background())
			out <- getResult{p, err}
		}()
	}
	return out
}

func TestCacheServesFreshEntryWithoutFetching(t *testing.T) {
	clock := newFakeClock()
	p := samplePayload(18)
	src := newFakeSource(fetchResult{p: p})
	c := NewCache(src, nil, CacheOptions{TTL: 10 * time.Minute, Now: clock.Now})

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, p, got)

	for _, step := range []time.Duration{0, time.Minute, 8*time.Minute + 59*time.Second} {
		clock.Advance(step)
		got, err = c.Get(context.Background())
		require.NoError(t, err)
		require.Same(t, p, got)
	}
	require.Equal(t, 1, src.Calls())
	require.Equal(t, StateFresh, c.State())
}

func TestCacheRefetchesOnceAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	p1, p2 := samplePayload(18), samplePayload(21)
	src := newFakeSource(fetchResult{p: p1}, fetchResult{p: p2})
	c := NewCache(src, nil, CacheOptions{TTL: 10 * time.Minute, Now: clock.Now})

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	require.Equal(t, StateStale, c.State())

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, p2, got)

	got, err = c.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, p2, got)
	require.Equal(t, 2, src.Calls())
}

func TestCacheDeduplicatesConcurrentCallers(t *testing.T) {
	clock := newFakeClock()
	p := samplePayload(12)
	src := newFakeSource(fetchResult{p: p})
	src.gate = make(chan struct{})
	c := NewCache(src, nil, CacheOptions{TTL: 30 * time.Minute, Now: clock.Now})

	results := concurrentGets(c, 5)
	waitEntered(t, src)
	waitJoins(t, c, 4)
	require.Equal(t, StateFetching, c.State())
	close(src.gate)

	for i := 0; i < 5; i++ {
		r := <-results
		require.NoError(t, r.err)
		require.Same(t, p, r.p)
	}
	require.Equal(t, 1, src.Calls())
}

func TestCacheSharesFailureWithJoinedCallers(t *testing.T) {
	upstreamErr := &UpstreamError{Status: 503, Message: "unavailable"}
	src := newFakeSource(fetchResult{err: upstreamErr})
	src.gate = make(chan struct{})
	c := NewCache(src, nil, CacheOptions{NoJoinRetry: true, Now: newFakeClock().Now})

	results := concurrentGets(c, 5)
	waitEntered(t, src)
	waitJoins(t, c, 4)
	close(src.gate)

	for i := 0; i < 5; i++ {
		r := <-results
		require.Nil(t, r.p)
		require.Same(t, upstreamErr, r.err)
	}
	require.Equal(t, 1, src.Calls())
	require.Equal(t, StateEmpty, c.State())
}

func TestCacheJoinedCallersRetryOnceAfterFailure(t *testing.T) {
	p := samplePayload(9)
	src := newFakeSource(fetchResult{err: &NetworkError{Err: errors.New("connection reset")}}, fetchResult{p: p})
	src.gate = make(chan struct{})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	results := concurrentGets(c, 5)
	waitEntered(t, src)
	waitJoins(t, c, 4)
	close(src.gate)

	var failed, succeeded int
	for i := 0; i < 5; i++ {
		r := <-results
		if r.err != nil {
			require.True(t, IsNetwork(r.err))
			failed++
			continue
		}
		require.Same(t, p, r.p)
		succeeded++
	}
	require.Equal(t, 1, failed, "only the caller that started the fetch sees its failure")
	require.Equal(t, 4, succeeded)
	require.Equal(t, 2, src.Calls(), "the retry is shared by the joined callers")
}

func TestCacheJoinRetryIsBounded(t *testing.T) {
	src := newFakeSource(fetchResult{err: &UpstreamError{Status: 500}})
	src.gate = make(chan struct{})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	results := concurrentGets(c, 2)
	waitEntered(t, src)
	waitJoins(t, c, 1)
	close(src.gate)

	for i := 0; i < 2; i++ {
		r := <-results
		require.Error(t, r.err)
		require.Equal(t, 500, StatusCode(r.err))
	}
	require.Equal(t, 2, src.Calls())
}

func TestCacheKeepsStaleEntryWhenRefreshFails(t *testing.T) {
	clock := newFakeClock()
	p := samplePayload(15)
	netErr := &NetworkError{Err: errors.New("dial tcp: no such host")}
	src := newFakeSource(fetchResult{p: p}, fetchResult{err: netErr})
	c := NewCache(src, nil, CacheOptions{TTL: 30 * time.Minute, Now: clock.Now})

	first, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, p, first)

	clock.Advance(31 * time.Minute)
	_, err = c.Get(context.Background())
	var ne *NetworkError
	require.ErrorAs(t, err, &ne)

	entry, ok := c.Peek()
	require.True(t, ok)
	require.Same(t, p, entry.Payload)
	require.Equal(t, StateStale, c.State())

	clock.Advance(time.Second)
	_, err = c.Get(context.Background())
	require.ErrorAs(t, err, &ne)
	require.Equal(t, 3, src.Calls())
}

func TestCacheProviderErrorLeavesCacheUntouched(t *testing.T) {
	src := newFakeSource(fetchResult{err: &ProviderError{Status: 401, Message: "API key no válida"}})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	_, err := c.Get(context.Background())
	require.Error(t, err)
	require.Equal(t, 401, StatusCode(err))
	require.True(t, IsUnauthorized(err))

	_, ok := c.Peek()
	require.False(t, ok)
	require.Equal(t, StateEmpty, c.State())
}

func TestCacheFetchDeadline(t *testing.T) {
	src := newFakeSource(fetchResult{p: samplePayload(1)})
	src.gate = make(chan struct{})
	c := NewCache(src, nil, CacheOptions{FetchTimeout: 20 * time.Millisecond})

	_, err := c.Get(context.Background())
	require.True(t, IsNetwork(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheWaiterCancellationDoesNotCancelFetch(t *testing.T) {
	p := samplePayload(7)
	src := newFakeSource(fetchResult{p: p})
	src.gate = make(chan struct{})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	first := concurrentGets(c, 1)
	waitEntered(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		second <- err
	}()
	waitJoins(t, c, 1)
	cancel()
	require.ErrorIs(t, <-second, context.Canceled)

	close(src.gate)
	r := <-first
	require.NoError(t, r.err)
	require.Same(t, p, r.p)
	require.Equal(t, 1, src.Calls())
}

func TestCacheInvalidate(t *testing.T) {
	p1, p2 := samplePayload(1), samplePayload(2)
	src := newFakeSource(fetchResult{p: p1}, fetchResult{p: p2})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	c.Invalidate()
	require.Equal(t, StateEmpty, c.State())

	got, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, p2, got)
	require.Equal(t, 2, src.Calls())
}

func TestCacheInvalidateDuringFetchSkipsStore(t *testing.T) {
	p := samplePayload(3)
	src := newFakeSource(fetchResult{p: p})
	src.gate = make(chan struct{})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	results := concurrentGets(c, 1)
	waitEntered(t, src)
	c.Invalidate()
	close(src.gate)

	r := <-results
	require.NoError(t, r.err)
	require.Same(t, p, r.p)

	_, ok := c.Peek()
	require.False(t, ok)
}

func TestCacheGetAfterInvalidateStartsNewFetch(t *testing.T) {
	old, fresh := samplePayload(1), samplePayload(2)
	src := newFakeSource(fetchResult{p: old}, fetchResult{p: fresh})
	src.gate = make(chan struct{})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	refreshed := make(chan getResult, 1)
	go func() {
		p, err := c.Refresh(context.Background())
		refreshed <- getResult{p, err}
	}()
	waitEntered(t, src)

	c.Invalidate()
	results := concurrentGets(c, 1)
	waitEntered(t, src)
	require.Equal(t, 2, src.Calls())
	require.Equal(t, StateFetching, c.State())

	close(src.gate)

	r := <-results
	require.NoError(t, r.err)
	require.Same(t, fresh, r.p)

	r = <-refreshed
	require.NoError(t, r.err)
	require.Same(t, old, r.p)

	e, ok := c.Peek()
	require.True(t, ok)
	require.Same(t, fresh, e.Payload)
	require.Equal(t, StateFresh, c.State())
}

func TestCacheEmptyPayloadIsProviderError(t *testing.T) {
	src := newFakeSource(fetchResult{})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	_, err := c.Get(context.Background())
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	require.Zero(t, pe.Status)

	_, ok := c.Peek()
	require.False(t, ok)
}

func TestCacheRefreshIgnoresFreshness(t *testing.T) {
	p1, p2 := samplePayload(1), samplePayload(2)
	src := newFakeSource(fetchResult{p: p1}, fetchResult{p: p2})
	c := NewCache(src, nil, CacheOptions{Now: newFakeClock().Now})

	_, err := c.Get(context.Background())
	require.NoError(t, err)

	got, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Same(t, p2, got)

	got, err = c.Get(context.Background())
	require.NoError(t, err)
	require.Same(t, p2, got)
	require.Equal(t, 2, src.Calls())
}

func TestCacheLoadsProviderConfig(t *testing.T) {
	cfg := ProviderConfig{APIKey: "k", PlaceID: "london"}
	src := newFakeSource(fetchResult{p: samplePayload(1)})
	c := NewCache(src, staticConfigs{cfg: cfg}, CacheOptions{Now: newFakeClock().Now})

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ProviderConfig{cfg}, src.configs)
}

func TestCacheFallsBackToDefaultsWhenConfigUnavailable(t *testing.T) {
	src := newFakeSource(fetchResult{p: samplePayload(1)})
	c := NewCache(src, staticConfigs{err: errors.New("disk gone")}, CacheOptions{Now: newFakeClock().Now})

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, []ProviderConfig{{}}, src.configs)
}

func TestCacheSubscribe(t *testing.T) {
	clock := newFakeClock()
	p := samplePayload(5)
	failure := &UpstreamError{Status: 502}
	src := newFakeSource(fetchResult{p: p}, fetchResult{err: failure})
	c := NewCache(src, nil, CacheOptions{TTL: time.Minute, Now: clock.Now})

	updates, unsubscribe := c.Subscribe()

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	u := <-updates
	require.NoError(t, u.Err)
	require.Same(t, p, u.Payload)
	require.Equal(t, clock.Now(), u.FetchedAt)

	clock.Advance(time.Minute)
	_, err = c.Get(context.Background())
	require.Error(t, err)
	u = <-updates
	require.Same(t, failure, u.Err)

	unsubscribe()
	_, open := <-updates
	require.False(t, open)
	unsubscribe()
}
