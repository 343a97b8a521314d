package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/carelink/internal/client/ledger"
	"github.com/carelinkhq/carelink/internal/client/models"
	"github.com/carelinkhq/carelink/internal/client/nav"
	"github.com/carelinkhq/carelink/internal/retry"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	gw       *fakeGateway
	profiles *fakeProfiles
	votes    *fakeVotes
	ledger   *memLedger
	nav      *navRecorder
	toasts   *toastRecorder
	ctrl     *Controller
}

func newFixture(t *testing.T, tweak func(*Options)) *fixture {
	t.Helper()
	f := &fixture{
		gw:       newFakeGateway(),
		profiles: &fakeProfiles{},
		votes:    newFakeVotes(),
		ledger:   newMemLedger(),
		nav:      &navRecorder{},
		toasts:   &toastRecorder{},
	}
	opts := Options{
		Gateway:        f.gw,
		Profiles:       f.profiles,
		Votes:          f.votes,
		Ledger:         f.ledger,
		Nav:            f.nav,
		Notifier:       f.toasts,
		Retrier:        retry.New(retry.Options{Base: time.Millisecond, Cap: time.Millisecond}),
		LoadingTimeout: time.Second,
	}
	if tweak != nil {
		tweak(&opts)
	}
	f.ctrl = New(opts)
	t.Cleanup(func() {
		_ = f.ctrl.Close()
		_ = f.gw.Close()
	})
	return f
}

func sessionFor(userID, email, metaRole string) *models.Session {
	return &models.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User: &models.User{
			ID:       userID,
			Email:    email,
			Metadata: models.UserMetadata{Role: metaRole},
		},
	}
}

func completeProfile(userID, role string) *models.Profile {
	return &models.Profile{ID: userID, FullName: "Dana", Role: role}
}

func countOf(msgs []string, want string) int {
	n := 0
	for _, m := range msgs {
		if m == want {
			n++
		}
	}
	return n
}

func TestStart_AnonymousVisit(t *testing.T) {
	f := newFixture(t, nil)

	f.ctrl.Start(context.Background())

	snap := f.ctrl.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.User)
	assert.Equal(t, models.RoleUnknown, snap.Role)
	assert.Empty(t, f.nav.all())
}

func TestStart_ExistingSessionRedirectsToDashboard(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.session = sessionFor("u-1", "d@example.com", "family")
	f.profiles.profile = completeProfile("u-1", "family")

	f.ctrl.Start(context.Background())

	snap := f.ctrl.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, models.RoleFamily, snap.Role)
	assert.True(t, snap.ProfileComplete)

	last, ok := f.nav.last()
	require.True(t, ok)
	assert.Equal(t, nav.Intent{Path: "/dashboard/family", Replace: true}, last)
}

func TestSignIn_EmbeddedRoleCompleteProfile(t *testing.T) {
	f := newFixture(t, nil)
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "d@example.com", "family")})

	require.Eventually(t, func() bool {
		last, ok := f.nav.last()
		return ok && last.Path == "/dashboard/family"
	}, waitFor, tick)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, models.RoleFamily, snap.Role)
	assert.True(t, snap.ProfileComplete)

	// A token refresh re-resolves state but must not navigate or toast again.
	f.gw.emit(models.AuthEvent{Type: models.EventTokenRefreshed, Session: sessionFor("u-1", "d@example.com", "family")})
	require.Eventually(t, func() bool { return f.profiles.getCalls() >= 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return !f.ctrl.Snapshot().Loading }, waitFor, tick)

	assert.Len(t, f.nav.all(), 1)
	assert.Equal(t, 1, countOf(f.toasts.successMessages(), "Welcome back!"))
	assert.Equal(t, 1, countOf(f.toasts.successMessages(), "Signed in successfully"))
}

func TestSignIn_IncompleteProfileUsesIntendedRole(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Set(context.Background(), ledger.SlotRegisteringAs, "professional"))
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "p@example.com", "")})

	require.Eventually(t, func() bool {
		last, ok := f.nav.last()
		return ok && last.Path == "/registration/professional"
	}, waitFor, tick)

	// The sign-up hint was promoted to the durable intended-role marker.
	assert.Empty(t, f.ledger.value(ledger.SlotRegisteringAs))
	assert.Equal(t, "professional", f.ledger.value(ledger.SlotIntendedRole))
	assert.Equal(t, 1, f.toasts.infoCount())
}

func TestSignIn_PendingUpvoteReplay(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Set(context.Background(), ledger.SlotPendingUpvote, "f-42"))
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "d@example.com", "family")})

	require.Eventually(t, func() bool {
		last, ok := f.nav.last()
		return ok && last.Path == "/dashboard/family"
	}, waitFor, tick)

	assert.Equal(t, []string{"f-42"}, f.votes.createdIDs())
	assert.Empty(t, f.ledger.value(ledger.SlotPendingUpvote))
	assert.Equal(t, 1, countOf(f.toasts.successMessages(), "Your vote has been recorded"))
}

func TestSignIn_PendingUpvoteAlreadyCast(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ledger.Set(context.Background(), ledger.SlotPendingUpvote, "f-9"))
	f.votes.existing["f-9"] = true
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "d@example.com", "family")})

	require.Eventually(t, func() bool {
		last, ok := f.nav.last()
		return ok && last.Path == "/dashboard/family"
	}, waitFor, tick)

	assert.Empty(t, f.votes.createdIDs())
	assert.Equal(t, 1, countOf(f.toasts.infoMessages(), "You have already voted for this feature"))
}

func TestRequireAuth_Anonymous(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.Start(context.Background())

	ok := f.ctrl.RequireAuth(context.Background(), "book care", "/booking/123")

	assert.False(t, ok)
	assert.Equal(t, "/booking/123", f.ledger.value(ledger.SlotPendingBookingPath))
	last, found := f.nav.last()
	require.True(t, found)
	assert.Equal(t, nav.Intent{Path: "/auth", Force: true}, last)
	assert.Equal(t, 1, f.toasts.errorCount())
}

func TestRequireAuth_Authenticated(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.session = sessionFor("u-1", "d@example.com", "family")
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())
	navsBefore := len(f.nav.all())

	ok := f.ctrl.RequireAuth(context.Background(), "book care", "/booking/123")

	assert.True(t, ok)
	assert.Empty(t, f.ledger.value(ledger.SlotPendingBookingPath))
	assert.Len(t, f.nav.all(), navsBefore)
	assert.Zero(t, f.toasts.errorCount())
}

func TestRequireAuth_SlotClassification(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		redirect string
		slot     ledger.Slot
		want     string
	}{
		{"upvote stores the feature id", "upvote f-7", "/community", ledger.SlotPendingUpvote, "f-7"},
		{"booking stores the redirect path", "book care for mom", "/booking/9", ledger.SlotPendingBookingPath, "/booking/9"},
		{"message stores the redirect path", "send message to a caregiver", "/messages/3", ledger.SlotPendingMessagePath, "/messages/3"},
		{"profile update stores the redirect path", "update profile", "/profile/edit", ledger.SlotPendingProfilePath, "/profile/edit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.ctrl.Start(context.Background())

			assert.False(t, f.ctrl.RequireAuth(context.Background(), tt.action, tt.redirect))
			assert.Equal(t, tt.want, f.ledger.value(tt.slot))
		})
	}

	t.Run("unclassified action uses the generic slots", func(t *testing.T) {
		f := newFixture(t, nil)
		f.ctrl.Start(context.Background())

		assert.False(t, f.ctrl.RequireAuth(context.Background(), "view subscription plans", "/plans"))
		assert.Equal(t, "view subscription plans", f.ledger.value(ledger.SlotLastAction))
		assert.Equal(t, "/plans", f.ledger.value(ledger.SlotLastActionRedirect))
	})
}

func TestPendingSlot_OverwriteAndReplayOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())

	ctx := context.Background()
	f.ctrl.RequireAuth(ctx, "book care", "/booking/1")
	f.ctrl.RequireAuth(ctx, "book care", "/booking/2")
	assert.Equal(t, "/booking/2", f.ledger.value(ledger.SlotPendingBookingPath))

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "d@example.com", "family")})

	require.Eventually(t, func() bool {
		last, ok := f.nav.last()
		return ok && last.Path == "/booking/2"
	}, waitFor, tick)

	assert.Empty(t, f.ledger.value(ledger.SlotPendingBookingPath))
}

func TestRolePrecedence_EmbeddedWinsOverProfile(t *testing.T) {
	f := newFixture(t, nil)
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "p@example.com", "professional")})

	require.Eventually(t, func() bool {
		last, ok := f.nav.last()
		return ok && last.Path == "/dashboard/professional"
	}, waitFor, tick)

	assert.Equal(t, models.RoleProfessional, f.ctrl.Snapshot().Role)
}

func TestSignOut_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.session = sessionFor("u-1", "d@example.com", "family")
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())

	ctx := context.Background()
	f.ctrl.SignOut(ctx)

	snap := f.ctrl.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.User)
	last, ok := f.nav.last()
	require.True(t, ok)
	assert.Equal(t, nav.Intent{Path: "/", Replace: true, Force: true}, last)
	assert.Equal(t, 1, countOf(f.toasts.successMessages(), "Signed out"))

	// Signing out again is a no-op apart from the reassuring toast.
	f.ctrl.SignOut(ctx)
	snap = f.ctrl.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Equal(t, 2, f.gw.signOuts())
	assert.Equal(t, 2, countOf(f.toasts.successMessages(), "Signed out"))
}

func TestSignOut_ProviderFailureStillSignsOut(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.session = sessionFor("u-1", "d@example.com", "family")
	f.gw.signOutErr = errors.New("gateway down")
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())

	require.NoError(t, f.ledger.Set(context.Background(), ledger.SlotPendingUpvote, "f-1"))

	f.ctrl.SignOut(context.Background())

	snap := f.ctrl.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.Session)
	assert.Empty(t, f.ledger.value(ledger.SlotPendingUpvote))
	assert.Equal(t, 1, countOf(f.toasts.successMessages(), "Signed out"))
}

func TestExternalSignOut_NoForcedNavigation(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.session = sessionFor("u-1", "d@example.com", "family")
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())
	navsAfterSignIn := len(f.nav.all())

	require.NoError(t, f.ledger.Set(context.Background(), ledger.SlotLastAction, "stale"))

	f.gw.emit(models.AuthEvent{Type: models.EventSignedOut})

	require.Eventually(t, func() bool {
		return f.ctrl.Snapshot().State == StateAnonymous
	}, waitFor, tick)

	assert.Empty(t, f.ledger.value(ledger.SlotLastAction))
	assert.Len(t, f.nav.all(), navsAfterSignIn)
}

func TestRetryExhaustion_ProceedsDegraded(t *testing.T) {
	retrier := retry.New(retry.Options{Base: time.Millisecond, Cap: time.Millisecond})
	f := newFixture(t, func(o *Options) { o.Retrier = retrier })
	f.profiles.err = errors.New("network down")
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "d@example.com", "")})

	// Role and completeness stay unknown, so the user lands on the default
	// registration flow rather than a crash.
	require.Eventually(t, func() bool {
		last, ok := f.nav.last()
		return ok && last.Path == "/registration/family"
	}, waitFor, tick)

	assert.Equal(t, 3, f.profiles.getCalls())
	assert.Zero(t, retrier.Attempts("profile-lookup"))
}

func TestWatchdog_FiresOnceAndDiscardsLateResolution(t *testing.T) {
	block := make(chan struct{})
	f := newFixture(t, func(o *Options) { o.LoadingTimeout = 40 * time.Millisecond })
	f.profiles.block = block
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "d@example.com", "")})

	require.Eventually(t, func() bool { return f.toasts.errorCount() == 1 }, waitFor, tick)

	snap := f.ctrl.Snapshot()
	assert.False(t, snap.Loading)
	assert.NotEmpty(t, f.ledger.value(ledger.SlotTimeoutRecovery))

	// Releasing the stuck lookup must not apply the superseded resolution.
	close(block)
	time.Sleep(50 * time.Millisecond)

	snap = f.ctrl.Snapshot()
	assert.Equal(t, models.RoleUnknown, snap.Role)
	assert.False(t, snap.ProfileComplete)
	assert.Empty(t, f.nav.all())
	assert.Equal(t, 1, f.toasts.errorCount())
}

func TestClose_DuringLoadingStopsWatchdogAndLoop(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	f := newFixture(t, func(o *Options) { o.LoadingTimeout = 60 * time.Millisecond })
	f.profiles.block = block
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: models.EventSignedIn, Session: sessionFor("u-1", "d@example.com", "family")})
	require.Eventually(t, func() bool { return f.profiles.getCalls() == 1 }, waitFor, tick)

	require.NoError(t, f.ctrl.Close())

	// No watchdog toast may arrive after teardown.
	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, f.toasts.errorCount())
}

func TestUnknownEvent_ClearsNothingWhenSettled(t *testing.T) {
	f := newFixture(t, nil)
	f.gw.session = sessionFor("u-1", "d@example.com", "family")
	f.profiles.profile = completeProfile("u-1", "family")
	f.ctrl.Start(context.Background())

	f.gw.emit(models.AuthEvent{Type: "PASSWORD_RECOVERY"})

	require.Eventually(t, func() bool {
		snap := f.ctrl.Snapshot()
		return snap.State == StateAuthenticated && !snap.Loading
	}, waitFor, tick)
}
