package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/cinema-booking/internal/config"
	"github.com/iliyamo/cinema-booking/internal/logger"
)

// LockOptions tune the fill protocol of a single GetOrCompute call.
type LockOptions struct {
	LockTTL       time.Duration
	Jitter        time.Duration
	RetryInterval time.Duration
	MaxWait       time.Duration
}

// LockOptionsFromConfig copies the lock settings out of cfg.
func LockOptionsFromConfig(cfg config.CacheConfig) LockOptions {
	return LockOptions{
		LockTTL:       cfg.LockTTL,
		Jitter:        cfg.Jitter,
		RetryInterval: cfg.RetryInterval,
		MaxWait:       cfg.MaxWait,
	}
}

// Factory computes the value of a missing key.
type Factory func(ctx context.Context) ([]byte, error)

// Coordinator serves read-through lookups so that, across every process
// sharing the store, at most one caller recomputes an expired key while the
// others wait for its result.
//
// A lookup probes the store, sleeps a random jitter on a miss, then races
// for lock:<key> with SET NX.  The winner re-probes, runs the factory, stores
// the value and releases the lock only if it still holds its own token.
// Losers poll the key every RetryInterval; after MaxWait they call the
// factory themselves and return its value without caching it.
//
// Store errors never fail a lookup.  They are logged and the value is
// computed directly.
type Coordinator struct {
	store Store
	opts  LockOptions
	group singleflight.Group
	log   *logrus.Entry
}

// NewCoordinator returns a coordinator over store using opts as the
// default lock settings.
func NewCoordinator(store Store, opts LockOptions) *Coordinator {
	return &Coordinator{
		store: store,
		opts:  opts,
		log:   logger.WithComponent("cache"),
	}
}

// GetOrCompute returns the cached value of key or fills it from factory.
// A non-empty lock overrides the coordinator's lock settings for this call.
//
// Concurrent calls for the same key inside this process share one fill:
// the call that starts it decides factory, ttl and lock settings, and later
// callers receive its result without running their own factory.  Callers
// must therefore use one ttl and an equivalent factory per key.
func (c *Coordinator) GetOrCompute(ctx context.Context, key string, ttl time.Duration, factory Factory, lock ...LockOptions) ([]byte, error) {
	opts := c.opts
	if len(lock) > 0 {
		opts = lock[0]
	}
	// The shared fill must outlive the caller that happened to start it.
	fillCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.fill(fillCtx, key, ttl, factory, opts)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate removes every key starting with prefix.  Failures are logged;
// stale entries then live until their TTL expires.
func (c *Coordinator) Invalidate(ctx context.Context, prefix string) {
	n, err := c.store.DeleteByPrefix(ctx, prefix)
	if err != nil {
		c.log.WithError(err).WithField("prefix", prefix).Warn("cache invalidation failed")
		return
	}
	c.log.WithFields(logrus.Fields{"prefix": prefix, "keys": n}).Debug("cache invalidated")
}

func (c *Coordinator) fill(ctx context.Context, key string, ttl time.Duration, factory Factory, opts LockOptions) ([]byte, error) {
	if v, ok := c.probe(ctx, key); ok {
		return v, nil
	}

	if opts.Jitter > 0 {
		if err := sleep(ctx, rand.N(opts.Jitter)); err != nil {
			return nil, err
		}
	}

	lockKey := LockKey(key)
	token := uuid.NewString()
	acquired, err := c.store.SetIfAbsent(ctx, lockKey, []byte(token), opts.LockTTL)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache lock unavailable, computing directly")
		return factory(ctx)
	}
	if acquired {
		return c.fillLocked(ctx, key, lockKey, token, ttl, factory)
	}

	deadline := time.Now().Add(opts.MaxWait)
	for {
		wait := time.Until(deadline)
		if wait <= 0 {
			break
		}
		if err := sleep(ctx, min(opts.RetryInterval, wait)); err != nil {
			return nil, err
		}
		if v, ok := c.probe(ctx, key); ok {
			return v, nil
		}
	}

	c.log.WithField("key", key).Debug("cache wait timed out, computing directly")
	return factory(ctx)
}

func (c *Coordinator) fillLocked(ctx context.Context, key, lockKey, token string, ttl time.Duration, factory Factory) ([]byte, error) {
	defer c.release(ctx, lockKey, token)

	// Another owner may have filled the key between our probe and the lock.
	if v, ok := c.probe(ctx, key); ok {
		return v, nil
	}
	v, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, key, v, ttl); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
	return v, nil
}

func (c *Coordinator) release(ctx context.Context, lockKey, token string) {
	if _, err := c.store.DeleteIfValue(ctx, lockKey, []byte(token)); err != nil {
		c.log.WithError(err).WithField("key", lockKey).Warn("cache lock release failed")
	}
}

// probe reports a hit.  Errors other than a miss are logged and count as a
// miss.
func (c *Coordinator) probe(ctx context.Context, key string) ([]byte, bool) {
	v, err := c.store.Get(ctx, key)
	if err == nil {
		return v, true
	}
	if !errors.Is(err, ErrMiss) {
		c.log.WithError(err).WithField("key", key).Warn("cache read failed")
	}
	return nil, false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetOrComputeJSON is GetOrCompute for JSON-encoded values.  A nil
// coordinator calls compute directly.
func GetOrComputeJSON[T any](ctx context.Context, c *Coordinator, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var out T
	if c == nil {
		return compute(ctx)
	}
	raw, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		// A corrupt entry is dropped so the next lookup refills it.
		c.log.WithError(err).WithField("key", key).Warn("discarding undecodable cache entry")
		if derr := c.store.Delete(ctx, key); derr != nil {
			c.log.WithError(derr).WithField("key", key).Warn("cache delete failed")
		}
		return compute(ctx)
	}
	return out, nil
}
