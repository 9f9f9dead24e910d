package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"ourapp-backend/internal/models"
	"ourapp-backend/internal/repository"
	"ourapp-backend/internal/store"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// recordingNotifier remembers every partner-joined call
type recordingNotifier struct {
	mu    sync.Mutex
	calls [][2]models.User
}

func (n *recordingNotifier) PartnerJoined(_ context.Context, issuer, partner models.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, [2]models.User{issuer, partner})
	return nil
}

func (n *recordingNotifier) snapshot() [][2]models.User {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][2]models.User(nil), n.calls...)
}

// device is one installation of the app: its own local store and
// services, optionally sharing a remote registry with other devices
type device struct {
	local    *store.Memory
	codes    *repository.CodeRepository
	sessions *repository.SessionRepository
	journal  *repository.JournalRepository
	users    *UserService
	pairs    *PairService
	daily    *DailyService
	notifier *recordingNotifier
}

func newDevice(remote store.Store) *device {
	local := store.NewMemory(5 * time.Millisecond)

	var registry store.Store = local
	if remote != nil {
		registry = store.NewFallback(remote, local)
	}

	d := &device{
		local:    local,
		codes:    repository.NewCodeRepository(registry, "ourapp"),
		sessions: repository.NewSessionRepository(local),
		journal:  repository.NewJournalRepository(local),
		notifier: &recordingNotifier{},
	}
	d.users = NewUserService(d.sessions, d.journal, d.codes, testSecret)
	d.pairs = NewPairService(d.codes, d.sessions, d.notifier)
	d.daily = NewDailyService(d.sessions, d.journal, time.UTC)
	return d
}

// fixedCodes makes the pair service hand out the given codes in order
func fixedCodes(p *PairService, codes ...string) {
	var mu sync.Mutex
	p.generate = func() string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[0]
		codes = codes[1:]
		return code
	}
}

func signup(t *testing.T, d *device, name string) string {
	t.Helper()
	res, err := d.users.Signup(context.Background(), "", SignupRequest{
		Name:  name,
		Email: name + "@example.com",
	})
	require.NoError(t, err)
	return res.SessionID
}
