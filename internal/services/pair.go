package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"ourapp-backend/internal/models"
	"ourapp-backend/internal/repository"
	"ourapp-backend/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	// CodeLength is the number of characters in a pairing code
	CodeLength = 6
	// CodeAlphabet leaves out I, O, 0 and 1
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// PairService runs the pairing protocol for both sides: the issuer who
// hands out a code and the joiner who types it in.
type PairService struct {
	codes    *repository.CodeRepository
	sessions *repository.SessionRepository
	notifier Notifier
	events   *codeEvents
	now      func() time.Time
	generate func() string
}

// NewPairService creates a new pair service
func NewPairService(codes *repository.CodeRepository, sessions *repository.SessionRepository, notifier Notifier) *PairService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &PairService{
		codes:    codes,
		sessions: sessions,
		notifier: notifier,
		events:   newCodeEvents(),
		now:      time.Now,
		generate: GenerateCode,
	}
}

// GenerateCode generates a random 6-character code. Collisions with codes
// already in the registry are not checked.
func GenerateCode() string {
	code := make([]byte, CodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(CodeAlphabet))))
		code[i] = CodeAlphabet[n.Int64()]
	}
	return string(code)
}

// NormalizeCode uppercases input, drops anything outside A-Z and 0-9 and
// truncates to the code length
func NormalizeCode(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == CodeLength {
				break
			}
		}
	}
	return b.String()
}

// publicUser strips device-specific fields before a user is shared
func publicUser(u models.User) models.User {
	u.PushToken = nil
	return u
}

func (s *PairService) loadUnpaired(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.User == nil {
		return nil, models.ErrNotSignedUp
	}
	if session.IsPaired() {
		return nil, models.ErrAlreadyPaired
	}
	return session, nil
}

// IssueCode returns the session's code, generating and registering one if
// the session has none yet
func (s *PairService) IssueCode(ctx context.Context, sessionID string) (*models.PairRecord, error) {
	session, err := s.loadUnpaired(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Pair != nil {
		return session.Pair, nil
	}
	return s.issue(ctx, sessionID, *session.User)
}

// RegenerateCode removes the session's current registry entry and issues a
// new code in its place
func (s *PairService) RegenerateCode(ctx context.Context, sessionID string) (*models.PairRecord, error) {
	session, err := s.loadUnpaired(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Pair != nil {
		if err := s.codes.Remove(ctx, session.Pair.Code); err != nil {
			return nil, fmt.Errorf("failed to remove old code: %w", err)
		}
	}
	return s.issue(ctx, sessionID, *session.User)
}

func (s *PairService) issue(ctx context.Context, sessionID string, user models.User) (*models.PairRecord, error) {
	pair := models.PairRecord{
		Code:      s.generate(),
		CreatedAt: s.now(),
	}
	if err := s.sessions.SavePair(ctx, sessionID, pair); err != nil {
		return nil, fmt.Errorf("failed to save code: %w", err)
	}
	if _, err := s.codes.Register(ctx, pair.Code, user); err != nil {
		return nil, err
	}

	s.events.publish(sessionID, pair)

	log.Info().
		Str("session_id", sessionID).
		Str("code", pair.Code).
		Msg("Code issued")

	return &pair, nil
}

// SubscribeCodes reports every code issued to the session from now on,
// whichever surface issued it. The returned cancel closes the channel.
func (s *PairService) SubscribeCodes(sessionID string) (<-chan models.PairRecord, func()) {
	return s.events.subscribe(sessionID)
}

// JoinByCode pairs the session with the issuer of code. On success the
// joiner is paired immediately; the issuer learns about it through the
// registry entry.
func (s *PairService) JoinByCode(ctx context.Context, sessionID, rawCode string) (*models.User, error) {
	session, err := s.loadUnpaired(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	code := NormalizeCode(rawCode)
	if len(code) != CodeLength {
		return nil, models.ErrIncompleteCode
	}

	entry, err := s.codes.Lookup(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrCodeNotFound
		}
		return nil, err
	}

	if entry.ID == session.User.ID {
		return nil, models.ErrOwnCode
	}

	if err := s.codes.Join(ctx, code, publicUser(*session.User)); err != nil {
		return nil, err
	}

	partner := publicUser(entry.User)
	if _, err := s.sessions.SetPartner(ctx, sessionID, partner, s.now()); err != nil {
		return nil, fmt.Errorf("failed to save partner: %w", err)
	}

	if err := s.notifier.PartnerJoined(ctx, entry.User, *session.User); err != nil {
		log.Warn().
			Err(err).
			Str("code", code).
			Msg("Failed to push partner joined notification")
	}

	log.Info().
		Str("session_id", sessionID).
		Str("code", code).
		Str("partner_id", partner.ID).
		Msg("Joined partner by code")

	return &partner, nil
}

// WatchPartner waits for a partner to join the session's code. When one
// does, the partner is stored, the subscription is dropped and onPaired is
// called once. There is no timeout; the caller stops waiting with the
// returned Unsubscribe.
func (s *PairService) WatchPartner(ctx context.Context, sessionID string, onPaired func(partner models.User)) (store.Unsubscribe, error) {
	session, err := s.loadUnpaired(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Pair == nil {
		return nil, fmt.Errorf("no code issued: %w", models.ErrNotFound)
	}

	var (
		mu    sync.Mutex
		unsub store.Unsubscribe
		done  bool
		once  sync.Once
	)
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		done = true
		if unsub != nil {
			unsub()
		}
	}

	code := session.Pair.Code
	u, err := s.codes.WatchPartner(ctx, code, func(partner models.User) {
		once.Do(func() {
			stop()
			if _, err := s.sessions.SetPartner(context.WithoutCancel(ctx), sessionID, partner, s.now()); err != nil {
				log.Error().
					Err(err).
					Str("session_id", sessionID).
					Msg("Failed to save partner")
				return
			}

			log.Info().
				Str("session_id", sessionID).
				Str("code", code).
				Str("partner_id", partner.ID).
				Msg("Partner joined")

			if onPaired != nil {
				onPaired(partner)
			}
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch code: %w", err)
	}

	mu.Lock()
	unsub = u
	if done {
		u()
	}
	mu.Unlock()

	return stop, nil
}

// RefreshPairing checks the registry once for a partner on the session's
// code and records it. Registry failures leave the session as it was.
func (s *PairService) RefreshPairing(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.User == nil || session.IsPaired() || session.Pair == nil {
		return session, nil
	}

	entry, err := s.codes.Lookup(ctx, session.Pair.Code)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to refresh pairing")
		}
		return session, nil
	}
	if entry.Partner == nil {
		return session, nil
	}

	if _, err := s.sessions.SetPartner(ctx, sessionID, *entry.Partner, s.now()); err != nil {
		return nil, fmt.Errorf("failed to save partner: %w", err)
	}
	return s.sessions.Load(ctx, sessionID)
}
