package session

import (
	"context"
	"sync"

	"github.com/carelinkhq/carelink/internal/client/ledger"
	"github.com/carelinkhq/carelink/internal/client/models"
	"github.com/carelinkhq/carelink/internal/client/nav"
)

type fakeGateway struct {
	mu           sync.Mutex
	session      *models.Session
	sessionErr   error
	signOutErr   error
	signOutCalls int
	events       chan models.AuthEvent
	closeOnce    sync.Once
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{events: make(chan models.AuthEvent, 8)}
}

func (g *fakeGateway) emit(ev models.AuthEvent) { g.events <- ev }

func (g *fakeGateway) Session(context.Context) (*models.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session, g.sessionErr
}

func (g *fakeGateway) SignIn(context.Context, string, string) (*models.Session, error) {
	return nil, nil
}

func (g *fakeGateway) SignUp(context.Context, string, string, models.UserMetadata) (*models.Session, error) {
	return nil, nil
}

func (g *fakeGateway) SignOut(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.signOutCalls++
	return g.signOutErr
}

func (g *fakeGateway) signOuts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.signOutCalls
}

func (g *fakeGateway) UpdateUser(context.Context, models.UserMetadata) (*models.User, error) {
	return nil, nil
}

func (g *fakeGateway) ResetPassword(context.Context, string, string) error { return nil }

func (g *fakeGateway) Events() <-chan models.AuthEvent { return g.events }

func (g *fakeGateway) Close() error {
	g.closeOnce.Do(func() { close(g.events) })
	return nil
}

type memLedger struct {
	mu    sync.Mutex
	slots map[ledger.Slot]string
}

func newMemLedger() *memLedger {
	return &memLedger{slots: make(map[ledger.Slot]string)}
}

func (l *memLedger) Get(_ context.Context, slot ledger.Slot) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slots[slot], nil
}

func (l *memLedger) Set(_ context.Context, slot ledger.Slot, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slots[slot] = value
	return nil
}

func (l *memLedger) Take(_ context.Context, slot ledger.Slot) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := l.slots[slot]
	delete(l.slots, slot)
	return v, nil
}

func (l *memLedger) Delete(_ context.Context, slot ledger.Slot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.slots, slot)
	return nil
}

func (l *memLedger) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, slot := range ledger.AuthSlots {
		delete(l.slots, slot)
	}
	return nil
}

func (l *memLedger) value(slot ledger.Slot) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slots[slot]
}

type fakeProfiles struct {
	mu      sync.Mutex
	profile *models.Profile
	err     error

	// block, when non-nil, is closed by the test to release Get calls.
	block chan struct{}
	calls int
}

func (f *fakeProfiles) Get(ctx context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	profile, err := f.profile, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return profile, err
}

func (f *fakeProfiles) getCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProfiles) Upsert(context.Context, *models.Profile) error { return nil }

func (f *fakeProfiles) SetAvatar(context.Context, string, string) error { return nil }

type fakeVotes struct {
	mu       sync.Mutex
	existing map[string]bool
	created  []string
	err      error
}

func newFakeVotes() *fakeVotes {
	return &fakeVotes{existing: make(map[string]bool)}
}

func (f *fakeVotes) HasVote(_ context.Context, featureID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[featureID], f.err
}

func (f *fakeVotes) Create(_ context.Context, featureID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.existing[featureID] {
		return false, nil
	}
	f.existing[featureID] = true
	f.created = append(f.created, featureID)
	return true, nil
}

func (f *fakeVotes) createdIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

type navRecorder struct {
	mu      sync.Mutex
	intents []nav.Intent
}

func (r *navRecorder) Navigate(_ context.Context, intent nav.Intent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
}

func (r *navRecorder) all() []nav.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nav.Intent(nil), r.intents...)
}

func (r *navRecorder) last() (nav.Intent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.intents) == 0 {
		return nav.Intent{}, false
	}
	return r.intents[len(r.intents)-1], true
}

type toastRecorder struct {
	mu        sync.Mutex
	successes []string
	infos     []string
	errors    []string
}

func (r *toastRecorder) Success(_ context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *toastRecorder) Info(_ context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *toastRecorder) Error(_ context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *toastRecorder) successMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.successes...)
}

func (r *toastRecorder) infoMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.infos...)
}

func (r *toastRecorder) successCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes)
}

func (r *toastRecorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func (r *toastRecorder) infoCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.infos)
}
