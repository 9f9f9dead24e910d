package store

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultPollInterval is used when a store is built without an explicit interval
const DefaultPollInterval = 2 * time.Second

type getFunc func(ctx context.Context, key string) ([]byte, error)

// poll emulates a change feed by reading key every interval and reporting
// differences from the previous read.
func poll(ctx context.Context, get getFunc, key string, interval time.Duration, fn ChangeFunc) Unsubscribe {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last []byte
		seen := false
		check := func() {
			value, err := get(ctx, key)
			exists := true
			if err != nil {
				if !IsNotFound(err) {
					log.Debug().Err(err).Str("key", key).Msg("Poll read failed")
					return
				}
				exists = false
			}
			changed := exists != seen || (exists && !bytes.Equal(value, last))
			last, seen = value, exists
			if changed && ctx.Err() == nil {
				fn(value, exists)
			}
		}

		check()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }
}
