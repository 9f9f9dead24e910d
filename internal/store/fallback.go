package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRemoteTimeout bounds every remote read and write made by Fallback
const DefaultRemoteTimeout = 5 * time.Second

// Fallback pairs an optional remote store with a local one. Reads prefer
// the remote and fall through to local on a miss or failure. Writes are
// attempted remotely and always mirrored locally. Remote failures are
// logged and never returned.
//
// A key whose last remote write failed is stale remotely, so it is read
// from local until a remote write for it succeeds again.
type Fallback struct {
	remote  Store
	local   Store
	timeout time.Duration

	mu    sync.Mutex
	dirty map[string]struct{}
}

// NewFallback composes remote and local. A nil remote gives local-only mode.
func NewFallback(remote, local Store) *Fallback {
	return &Fallback{
		remote:  remote,
		local:   local,
		timeout: DefaultRemoteTimeout,
		dirty:   make(map[string]struct{}),
	}
}

// HasRemote reports whether a remote store is configured
func (f *Fallback) HasRemote() bool {
	return f.remote != nil
}

func (f *Fallback) isDirty(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.dirty[key]
	return ok
}

func (f *Fallback) markRemote(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.dirty[key] = struct{}{}
		return
	}
	delete(f.dirty, key)
}

func (f *Fallback) Get(ctx context.Context, key string) ([]byte, error) {
	if f.remote != nil && !f.isDirty(key) {
		rctx, cancel := context.WithTimeout(ctx, f.timeout)
		value, err := f.remote.Get(rctx, key)
		cancel()
		if err == nil {
			return value, nil
		}
		if !IsNotFound(err) {
			log.Warn().Err(err).Str("key", key).Msg("Remote lookup failed, trying local store")
		}
	}
	return f.local.Get(ctx, key)
}

func (f *Fallback) Set(ctx context.Context, key string, value []byte) error {
	if f.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, f.timeout)
		err := f.remote.Set(rctx, key, value)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Remote write failed, keeping local copy only")
		}
		f.markRemote(key, err)
	}
	return f.local.Set(ctx, key, value)
}

func (f *Fallback) Delete(ctx context.Context, key string) error {
	if f.remote != nil {
		rctx, cancel := context.WithTimeout(ctx, f.timeout)
		err := f.remote.Delete(rctx, key)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Remote delete failed")
		}
		f.markRemote(key, err)
	}
	return f.local.Delete(ctx, key)
}

// Subscribe merges the remote feed with the local one so writes that only
// reached local are still seen. Equal values from both sides are reported
// once.
func (f *Fallback) Subscribe(ctx context.Context, key string, fn ChangeFunc) (Unsubscribe, error) {
	if f.remote == nil {
		return f.local.Subscribe(ctx, key, fn)
	}

	sub := newSubscriber(fn)

	remoteOK := true
	remoteUnsub, err := f.remote.Subscribe(ctx, key, sub.deliver)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Remote subscribe failed, polling local store")
		remoteOK = false
		remoteUnsub = func() {}
	}

	localUnsub, err := f.local.Subscribe(ctx, key, func(value []byte, exists bool) {
		// local mirrors every write, so with a working feed it only adds
		// news for stale keys
		if !remoteOK || f.isDirty(key) {
			sub.deliver(value, exists)
		}
	})
	if err != nil {
		remoteUnsub()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.close()
			remoteUnsub()
			localUnsub()
		})
	}, nil
}
