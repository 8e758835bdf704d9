package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultTTL          = 10 * time.Minute
	DefaultFetchTimeout = 15 * time.Second
)

// State is the observable state of the cache.
type State string

const (
	StateEmpty    State = "empty"
	StateFetching State = "fetching"
	StateFresh    State = "fresh"
	StateStale    State = "stale"
)

// Entry is the last successfully fetched payload. Payload and FetchedAt are
// always written together.
type Entry struct {
	Payload   *Payload
	FetchedAt time.Time
}

// Update is delivered to subscribers after every completed fetch.
type Update struct {
	Payload   *Payload
	FetchedAt time.Time
	Err       error
}

// CacheOptions configures a Cache. Zero values fall back to the defaults.
type CacheOptions struct {
	TTL          time.Duration
	FetchTimeout time.Duration

	// NoJoinRetry disables the single extra attempt a caller makes after the
	// fetch it joined has failed.
	NoJoinRetry bool

	Now    func() time.Time
	Logger *zerolog.Logger
}

// call is one upstream fetch shared by every caller that arrives while it
// runs. gen is the cache generation the fetch was started under.
type call struct {
	done    chan struct{}
	payload *Payload
	err     error
	joins   int
	gen     uint64
}

// Cache serves the latest weather payload to any number of concurrent
// callers. A fresh entry is returned directly; otherwise at most one fetch
// per generation runs at a time and every caller waiting on it observes its
// outcome.
// Failed fetches never evict the previous entry.
type Cache struct {
	source  Source
	configs ConfigStore
	ttl     time.Duration
	timeout time.Duration
	retry   bool
	now     func() time.Time
	log     zerolog.Logger

	mu       sync.Mutex
	entry    Entry
	gen      uint64
	inflight *call

	subMu sync.Mutex
	subs  map[string]chan Update
}

// NewCache creates a Cache reading from source. configs may be nil, in which
// case every fetch uses the default endpoint.
func NewCache(source Source, configs ConfigStore, opts CacheOptions) *Cache {
	c := &Cache{
		source:  source,
		configs: configs,
		ttl:     opts.TTL,
		timeout: opts.FetchTimeout,
		retry:   !opts.NoJoinRetry,
		now:     opts.Now,
		log:     zerolog.Nop(),
		subs:    make(map[string]chan Update),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultFetchTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "cache").Str("source", source.Name()).Logger()
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the cached payload while it is fresh. Otherwise it joins the
// running fetch or starts one. When a joined fetch fails the caller tries
// once more before giving up. Cancelling ctx stops the wait, not the fetch.
func (c *Cache) Get(ctx context.Context) (*Payload, error) {
	retried := false
	for {
		c.mu.Lock()
		if c.freshLocked() {
			p := c.entry.Payload
			c.mu.Unlock()
			return p, nil
		}

		if cl := c.joinableLocked(); cl != nil {
			cl.joins++
			c.mu.Unlock()

			p, err := c.wait(ctx, cl)
			if err == nil || retried || !c.retry || ctx.Err() != nil {
				return p, err
			}
			c.log.Debug().Err(err).Msg("joined fetch failed, retrying once")
			retried = true
			continue
		}

		cl := c.startLocked()
		c.mu.Unlock()
		return c.wait(ctx, cl)
	}
}

// Refresh fetches regardless of freshness, joining a fetch that is already
// running.
func (c *Cache) Refresh(ctx context.Context) (*Payload, error) {
	c.mu.Lock()
	cl := c.joinableLocked()
	if cl == nil {
		cl = c.startLocked()
	} else {
		cl.joins++
	}
	c.mu.Unlock()
	return c.wait(ctx, cl)
}

// Invalidate drops the cached entry. A fetch already running when
// Invalidate is called still answers its waiters but is not stored, and
// later callers start a new fetch instead of joining it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = Entry{}
	c.gen++
}

// Peek returns the last stored entry, fresh or not.
func (c *Cache) Peek() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry, c.entry.Payload != nil
}

// State reports the current cache state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.inflight != nil:
		return StateFetching
	case c.entry.Payload == nil:
		return StateEmpty
	case c.freshLocked():
		return StateFresh
	default:
		return StateStale
	}
}

// Subscribe registers for fetch updates. A slow subscriber only keeps the
// most recent update. The returned func unsubscribes and closes the channel.
func (c *Cache) Subscribe() (<-chan Update, func()) {
	id := uuid.NewString()
	ch := make(chan Update, 1)

	c.subMu.Lock()
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			close(ch)
			c.subMu.Unlock()
		})
	}
}

func (c *Cache) freshLocked() bool {
	return c.entry.Payload != nil && c.now().Sub(c.entry.FetchedAt) < c.ttl
}

// joinableLocked returns the running fetch if it belongs to the current
// generation.
func (c *Cache) joinableLocked() *call {
	if cl := c.inflight; cl != nil && cl.gen == c.gen {
		return cl
	}
	return nil
}

func (c *Cache) startLocked() *call {
	cl := &call{done: make(chan struct{}), gen: c.gen}
	c.inflight = cl
	go c.run(cl)
	return cl
}

func (c *Cache) wait(ctx context.Context, cl *call) (*Payload, error) {
	select {
	case <-cl.done:
		return cl.payload, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) run(cl *call) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	p, err := c.fetch(ctx)

	c.mu.Lock()
	var fetchedAt time.Time
	stored := false
	if err == nil {
		fetchedAt = c.now()
		if cl.gen == c.gen {
			c.entry = Entry{Payload: p, FetchedAt: fetchedAt}
			stored = true
		}
	}
	if c.inflight == cl {
		c.inflight = nil
	}
	cl.payload, cl.err = p, err
	joins := cl.joins
	close(cl.done)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Int("joined", joins).Dur("took", time.Since(start)).Msg("weather fetch failed; keeping previous entry")
		c.publish(Update{Err: err})
		return
	}
	c.log.Info().Int("joined", joins).Bool("stored", stored).Dur("took", time.Since(start)).Msg("weather fetched")
	if stored {
		c.publish(Update{Payload: p, FetchedAt: fetchedAt})
	}
}

func (c *Cache) fetch(ctx context.Context) (*Payload, error) {
	var cfg ProviderConfig
	if c.configs != nil {
		loaded, err := c.configs.LoadConfig(ctx)
		if err != nil {
			c.log.Warn().Err(err).Msg("could not load provider config; using default endpoint")
		} else {
			cfg = loaded
		}
	}

	p, err := c.source.Fetch(ctx, cfg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !IsNetwork(err) {
			return nil, &NetworkError{Err: err}
		}
		return nil, err
	}
	if p == nil {
		return nil, &ProviderError{Message: "source returned an empty payload"}
	}
	return p, nil
}

func (c *Cache) publish(u Update) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}
