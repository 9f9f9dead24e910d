package services

import (
	"sync"

	"ourapp-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const codeEventDepth = 8

// codeEvents fans newly issued codes out to per-session subscribers
type codeEvents struct {
	mu   sync.Mutex
	subs map[string]map[chan models.PairRecord]struct{}
}

func newCodeEvents() *codeEvents {
	return &codeEvents{subs: make(map[string]map[chan models.PairRecord]struct{})}
}

func (e *codeEvents) subscribe(sessionID string) (<-chan models.PairRecord, func()) {
	ch := make(chan models.PairRecord, codeEventDepth)

	e.mu.Lock()
	sessionSubs := e.subs[sessionID]
	if sessionSubs == nil {
		sessionSubs = make(map[chan models.PairRecord]struct{})
		e.subs[sessionID] = sessionSubs
	}
	sessionSubs[ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if subs := e.subs[sessionID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(e.subs, sessionID)
				}
			}
			close(ch)
		})
	}
}

// publish never blocks; a subscriber with a full buffer misses the event
func (e *codeEvents) publish(sessionID string, pair models.PairRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dropped := 0
	for ch := range e.subs[sessionID] {
		select {
		case ch <- pair:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		log.Warn().Str("session_id", sessionID).Int("count", dropped).Msg("Dropped code event")
	}
}
