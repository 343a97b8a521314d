// Package session implements the session state machine and redirection
// controller: the single authoritative view of {session, user, role, profile
// completeness} kept consistent with the identity provider's event stream,
// plus the gated-action guard and the defensive sign-out procedure.
package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/carelinkhq/carelink/internal/client/community"
	"github.com/carelinkhq/carelink/internal/client/gateway"
	"github.com/carelinkhq/carelink/internal/client/ledger"
	"github.com/carelinkhq/carelink/internal/client/models"
	"github.com/carelinkhq/carelink/internal/client/nav"
	"github.com/carelinkhq/carelink/internal/client/notify"
	"github.com/carelinkhq/carelink/internal/client/profiles"
	"github.com/carelinkhq/carelink/internal/client/routes"
	"github.com/carelinkhq/carelink/internal/logging"
	"github.com/carelinkhq/carelink/internal/retry"
)

// State is the controller's explicit lifecycle state. Loading is the
// authoritative "don't trust the other fields yet" signal.
type State string

const (
	StateIdle          State = "idle"
	StateLoading       State = "loading"
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
	StateSigningOut    State = "signingOut"
)

// DefaultLoadingTimeout is how long a loading phase may run before the
// watchdog force-clears it.
const DefaultLoadingTimeout = 15 * time.Second

// Snapshot is the consumer-facing view of the controller's state. All
// fields are copies; mutating them has no effect.
type Snapshot struct {
	State           State
	Session         *models.Session
	User            *models.User
	Role            models.Role
	ProfileComplete bool
	Loading         bool
}

// Options wires the controller's collaborators. Gateway, Profiles, Votes,
// Ledger, and Nav are required; the rest default sensibly.
type Options struct {
	Gateway  gateway.Gateway
	Profiles profiles.Store
	Votes    community.VoteStore
	Ledger   ledger.Ledger
	Nav      nav.Sink
	Notifier notify.Notifier
	Retrier  *retry.Retrier
	Logger   logging.Logger

	// LoadingTimeout overrides the watchdog interval, for tests.
	LoadingTimeout time.Duration

	// CurrentPath, when set, reports the consumer's current location so a
	// visit to the auth page can re-trigger redirection after the first
	// stabilization.
	CurrentPath func() string
}

// Controller is the session state machine. Construct with New, call Start
// once, and Close on teardown. All exported methods are safe for concurrent
// use.
type Controller struct {
	gw       gateway.Gateway
	profiles profiles.Store
	votes    community.VoteStore
	ledger   ledger.Ledger
	nav      nav.Sink
	notify   notify.Notifier
	retrier  *retry.Retrier
	log      logging.Logger

	loadingTimeout time.Duration
	currentPath    func() string

	mu              sync.Mutex
	state           State
	session         *models.Session
	user            *models.User
	role            models.Role
	profileComplete bool

	// gen increments on every transition into loading; resolutions carry
	// the generation they started under and are discarded when superseded.
	gen      uint64
	watchdog *time.Timer

	signOutInProgress bool
	welcomed          bool
	signedInOnce      bool
	stabilized        bool

	// runCtx is cancelled by Close so in-flight lookups unblock and the
	// event loop can drain.
	runCtx    context.Context
	cancelRun context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(opts Options) *Controller {
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Retrier == nil {
		opts.Retrier = retry.New(retry.Options{Logger: opts.Logger})
	}
	if opts.LoadingTimeout <= 0 {
		opts.LoadingTimeout = DefaultLoadingTimeout
	}
	runCtx, cancelRun := context.WithCancel(context.Background())
	return &Controller{
		gw:             opts.Gateway,
		profiles:       opts.Profiles,
		votes:          opts.Votes,
		ledger:         opts.Ledger,
		nav:            opts.Nav,
		notify:         opts.Notifier,
		retrier:        opts.Retrier,
		log:            opts.Logger,
		loadingTimeout: opts.LoadingTimeout,
		currentPath:    opts.CurrentPath,
		state:          StateIdle,
		runCtx:         runCtx,
		cancelRun:      cancelRun,
		done:           make(chan struct{}),
	}
}

// Start subscribes to the gateway event stream and performs the initial
// session fetch. It returns once the initial state has settled.
func (c *Controller) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.loop()
	c.initialize(ctx)
}

// Close stops the event loop and cancels any armed watchdog. It does not
// close the gateway; the gateway's owner does that.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.cancelRun()
		close(c.done)
	})
	c.wg.Wait()

	c.mu.Lock()
	c.cancelWatchdogLocked()
	c.mu.Unlock()
	return nil
}

// Snapshot returns the current derived state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:           c.state,
		Session:         c.session,
		User:            c.user,
		Role:            c.role,
		ProfileComplete: c.profileComplete,
		Loading:         c.state == StateLoading,
	}
}

func (c *Controller) loop() {
	defer c.wg.Done()
	events := c.gw.Events()
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(c.runCtx, ev)
		}
	}
}

// initialize fetches the current session once and settles the state either
// way. A leftover auth-error flag from a previous run is consumed here.
func (c *Controller) initialize(ctx context.Context) {
	if flag, err := c.ledger.Take(ctx, ledger.SlotAuthError); err == nil && flag != "" {
		c.log.Warn(ctx, "recovered from previous auth error", "flagged_at", flag)
	}

	gen := c.beginLoading()

	sess, err := c.gw.Session(ctx)
	if err != nil {
		c.log.Error(ctx, "initial session fetch failed", "error", err)
		c.settleAnonymous(gen)
		return
	}
	if sess == nil || sess.User == nil {
		c.settleAnonymous(gen)
		return
	}

	c.establish(ctx, gen, sess, false)
}

// handleEvent processes one gateway event to completion. A panic here must
// never leave the machine stuck in loading: it is swallowed, flagged in the
// ledger, and loading is cleared.
func (c *Controller) handleEvent(ctx context.Context, ev models.AuthEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(ctx, "auth event handler panicked", "event", string(ev.Type), "panic", r)
			_ = c.ledger.Set(ctx, ledger.SlotAuthError, time.Now().UTC().Format(time.RFC3339))
			c.clearLoading()
		}
	}()

	c.log.Debug(ctx, "auth event", "event", string(ev.Type))

	switch ev.Type {
	case models.EventSignedIn:
		gen := c.beginLoading()
		c.establish(ctx, gen, ev.Session, true)
	case models.EventTokenRefreshed, models.EventUserUpdated:
		gen := c.beginLoading()
		c.establish(ctx, gen, ev.Session, false)
	case models.EventSignedOut:
		c.handleSignedOut(ctx)
	default:
		c.clearLoading()
	}
}

// establish resolves role and profile completeness for the session and, if
// this resolution is still current, settles to authenticated and runs the
// redirection policy.
func (c *Controller) establish(ctx context.Context, gen uint64, sess *models.Session, signedIn bool) {
	if sess == nil || sess.User == nil {
		c.settleAnonymous(gen)
		return
	}

	// Session and user are published before the role/profile round trips,
	// in the fixed update order session → user → role → profile → loading
	// cleared. Loading stays the "don't trust other fields" signal.
	c.mu.Lock()
	if gen == c.gen {
		c.session = sess
		c.user = sess.User
	}
	c.mu.Unlock()

	c.writeAuthBreadcrumb(ctx, sess.User)

	role := sess.User.EmbeddedRole()

	profile, ok := retry.Do(ctx, c.retrier, "profile-lookup",
		func(ctx context.Context) (*models.Profile, error) {
			return c.profiles.Get(ctx, sess.UserID())
		})
	if !ok {
		// Exhausted retries: proceed degraded with role/profile unknown.
		profile = nil
	}

	if !role.Known() {
		role = profile.StoredRole()
	}
	complete := profile.Complete()

	if !c.settleAuthenticated(gen, sess, role, complete) {
		c.log.Debug(ctx, "discarding stale session resolution", "generation", gen)
		return
	}

	if signedIn {
		c.onFirstSignIn(ctx)
	}

	c.redirect(ctx)
}

// onFirstSignIn surfaces the one-time success toast and promotes the
// "registering as" hint into the intended-role marker.
func (c *Controller) onFirstSignIn(ctx context.Context) {
	c.mu.Lock()
	first := !c.signedInOnce
	c.signedInOnce = true
	c.mu.Unlock()
	if !first {
		return
	}

	c.notify.Success(ctx, "Signed in successfully")

	if registeringAs, err := c.ledger.Take(ctx, ledger.SlotRegisteringAs); err == nil && registeringAs != "" {
		if err := c.ledger.Set(ctx, ledger.SlotIntendedRole, registeringAs); err != nil {
			c.log.Warn(ctx, "failed to promote intended role", "error", err)
		}
	}
}

// redirect evaluates the policy and performs its side effects. It runs only
// on the first stabilization after a load, or when the consumer sits on the
// auth page.
func (c *Controller) redirect(ctx context.Context) {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return
	}
	onAuthPage := c.currentPath != nil && c.currentPath() == routes.Auth
	if c.stabilized && !onAuthPage {
		c.mu.Unlock()
		return
	}
	c.stabilized = true
	userID := c.user.ID
	role := c.role
	complete := c.profileComplete
	c.mu.Unlock()

	in := Input{
		UserID:          userID,
		Role:            role,
		ProfileComplete: complete,
	}
	if v, err := c.ledger.Get(ctx, ledger.SlotIntendedRole); err == nil {
		in.IntendedRole, _ = models.ParseRole(v)
	}
	in.PendingUpvote = c.slotValue(ctx, ledger.SlotPendingUpvote)
	in.PendingBookingPath = c.slotValue(ctx, ledger.SlotPendingBookingPath)
	in.PendingMessagePath = c.slotValue(ctx, ledger.SlotPendingMessagePath)
	in.PendingProfilePath = c.slotValue(ctx, ledger.SlotPendingProfilePath)

	d := Decide(in)
	c.log.Debug(ctx, "redirect decision", "kind", string(d.Kind), "path", d.Path)

	switch d.Kind {
	case DecideRegistration:
		c.notify.Info(ctx, "Please complete your profile to continue")
		c.nav.Navigate(ctx, nav.Intent{Path: d.Path, Replace: true})

	case DecideReplayUpvote:
		if _, err := c.ledger.Take(ctx, d.Slot); err != nil {
			c.log.Warn(ctx, "failed to clear pending upvote", "error", err)
		}
		c.replayUpvote(ctx, d.FeatureID, userID)
		c.nav.Navigate(ctx, nav.Intent{Path: d.Path, Replace: true})

	case DecideReplayPath:
		if _, err := c.ledger.Take(ctx, d.Slot); err != nil {
			c.log.Warn(ctx, "failed to clear pending path", "slot", string(d.Slot), "error", err)
		}
		c.nav.Navigate(ctx, nav.Intent{Path: d.Path, Replace: true})

	case DecideDashboard:
		c.welcomeOnce(ctx)
		_ = c.ledger.Delete(ctx, ledger.SlotLastAction)
		_ = c.ledger.Delete(ctx, ledger.SlotLastActionRedirect)
		c.nav.Navigate(ctx, nav.Intent{Path: d.Path, Replace: true})

	case DecideHome:
		c.nav.Navigate(ctx, nav.Intent{Path: d.Path, Replace: true})
	}
}

func (c *Controller) replayUpvote(ctx context.Context, featureID, userID string) {
	created, err := c.votes.Create(ctx, featureID, userID)
	switch {
	case err != nil:
		c.log.Error(ctx, "pending upvote replay failed", "feature_id", featureID, "error", err)
		c.notify.Error(ctx, "Could not record your vote, please try again")
	case created:
		c.notify.Success(ctx, "Your vote has been recorded")
	default:
		c.notify.Info(ctx, "You have already voted for this feature")
	}
}

func (c *Controller) welcomeOnce(ctx context.Context) {
	c.mu.Lock()
	first := !c.welcomed
	c.welcomed = true
	c.mu.Unlock()
	if first {
		c.notify.Success(ctx, "Welcome back!")
	}
}

func (c *Controller) slotValue(ctx context.Context, slot ledger.Slot) string {
	v, err := c.ledger.Get(ctx, slot)
	if err != nil {
		c.log.Warn(ctx, "ledger read failed", "slot", string(slot), "error", err)
		return ""
	}
	return v
}

// RequireAuth gates a privileged action. With a user present it returns true
// and does nothing. Anonymous callers get the action recorded for replay, an
// error toast, and a forced trip to the auth page.
func (c *Controller) RequireAuth(ctx context.Context, action, redirectPath string) bool {
	c.mu.Lock()
	authenticated := c.user != nil
	c.mu.Unlock()
	if authenticated {
		return true
	}

	c.recordPendingAction(ctx, action, redirectPath)
	c.notify.Error(ctx, "Please sign in to "+action)
	c.nav.Navigate(ctx, nav.Intent{Path: routes.Auth, Force: true})
	return false
}

// recordPendingAction classifies the action into its dedicated slot when the
// description matches a known prefix, otherwise into the generic pair.
func (c *Controller) recordPendingAction(ctx context.Context, action, redirectPath string) {
	var err error
	switch {
	case strings.HasPrefix(action, "upvote"):
		featureID := strings.TrimSpace(strings.TrimPrefix(action, "upvote"))
		if featureID == "" {
			featureID = redirectPath
		}
		err = c.ledger.Set(ctx, ledger.SlotPendingUpvote, featureID)
	case strings.HasPrefix(action, "book care"):
		err = c.ledger.Set(ctx, ledger.SlotPendingBookingPath, redirectPath)
	case strings.HasPrefix(action, "send message"):
		err = c.ledger.Set(ctx, ledger.SlotPendingMessagePath, redirectPath)
	case strings.HasPrefix(action, "update profile"):
		err = c.ledger.Set(ctx, ledger.SlotPendingProfilePath, redirectPath)
	default:
		if err = c.ledger.Set(ctx, ledger.SlotLastAction, action); err == nil && redirectPath != "" {
			err = c.ledger.Set(ctx, ledger.SlotLastActionRedirect, redirectPath)
		}
	}
	if err != nil {
		c.log.Warn(ctx, "failed to record pending action", "action", action, "error", err)
	}
}

// SignOut clears local state first, then tells the provider. The user-visible
// effect never depends on network success, and calling it while already
// signed out is a no-op that still lands the user at home.
func (c *Controller) SignOut(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(ctx, "sign-out panicked, forcing local sign-out", "panic", r)
			c.forceLocalSignOut()
		}
		c.mu.Lock()
		c.signOutInProgress = false
		c.mu.Unlock()

		c.nav.Navigate(ctx, nav.Intent{Path: routes.Home, Replace: true, Force: true})
		c.notify.Success(ctx, "Signed out")
	}()

	c.mu.Lock()
	c.signOutInProgress = true
	c.state = StateSigningOut
	c.gen++
	c.cancelWatchdogLocked()
	c.mu.Unlock()

	c.forceLocalSignOut()

	if err := c.ledger.Clear(ctx); err != nil {
		c.log.Warn(ctx, "failed to clear pending-action slots", "error", err)
	}

	if err := c.gw.SignOut(ctx); err != nil {
		// Local state is already cleared; from the user's perspective the
		// sign-out succeeded.
		c.log.Warn(ctx, "provider sign-out failed", "error", err)
	}
}

// forceLocalSignOut resets every derived field to the anonymous shape.
func (c *Controller) forceLocalSignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.user = nil
	c.role = models.RoleUnknown
	c.profileComplete = false
	c.welcomed = false
	c.signedInOnce = false
	c.stabilized = false
	c.state = StateAnonymous
}

// handleSignedOut processes a SIGNED_OUT stream event. When the event was
// caused by an explicit SignOut call, navigation and toasts were already
// handled there; an external sign-out (expiry, revocation elsewhere) only
// clears state and leaves navigation to dependent views.
func (c *Controller) handleSignedOut(ctx context.Context) {
	c.mu.Lock()
	explicit := c.signOutInProgress
	c.gen++
	c.cancelWatchdogLocked()
	c.mu.Unlock()

	c.forceLocalSignOut()

	if explicit {
		return
	}

	c.log.Info(ctx, "session ended externally")
	if err := c.ledger.Clear(ctx); err != nil {
		c.log.Warn(ctx, "failed to clear pending-action slots", "error", err)
	}
}

// beginLoading transitions into loading, bumps the generation, and arms the
// watchdog. The returned generation must be passed to the settle call so
// stale resolutions can be recognized.
func (c *Controller) beginLoading() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateLoading
	c.gen++
	gen := c.gen
	c.cancelWatchdogLocked()
	c.watchdog = time.AfterFunc(c.loadingTimeout, func() { c.watchdogFired(gen) })
	return gen
}

// settleAuthenticated applies a resolved session if gen is still current.
// Reports whether the resolution was applied.
func (c *Controller) settleAuthenticated(gen uint64, sess *models.Session, role models.Role, complete bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.cancelWatchdogLocked()
	c.session = sess
	c.user = sess.User
	c.role = role
	c.profileComplete = complete
	c.state = StateAuthenticated
	return true
}

func (c *Controller) settleAnonymous(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.cancelWatchdogLocked()
	c.session = nil
	c.user = nil
	c.role = models.RoleUnknown
	c.profileComplete = false
	c.state = StateAnonymous
}

// clearLoading ends a loading phase without changing the derived fields,
// used for unrecognized events and panic recovery.
func (c *Controller) clearLoading() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoading {
		return
	}
	c.cancelWatchdogLocked()
	if c.user != nil {
		c.state = StateAuthenticated
	} else {
		c.state = StateAnonymous
	}
}

func (c *Controller) cancelWatchdogLocked() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

// watchdogFired runs when a loading phase outlived its deadline. It only
// acts if the stuck generation is still current, then recovers per the
// operation kind.
func (c *Controller) watchdogFired(gen uint64) {
	ctx := context.Background()

	c.mu.Lock()
	if gen != c.gen || c.state != StateLoading {
		c.mu.Unlock()
		return
	}
	// Supersede the stuck generation: for one loading-start exactly one of
	// {normal clear, watchdog clear} may act, never both.
	c.gen++
	c.watchdog = nil
	signingOut := c.signOutInProgress
	hasUser := c.user != nil || c.session != nil
	if hasUser {
		c.state = StateAuthenticated
	} else {
		c.state = StateAnonymous
	}
	user := c.user
	c.mu.Unlock()

	c.log.Error(ctx, "loading watchdog fired", "generation", gen)

	switch {
	case signingOut:
		c.forceLocalSignOut()
		c.nav.Navigate(ctx, nav.Intent{Path: routes.Home, Replace: true, Force: true})
		go func() {
			if err := c.gw.SignOut(context.Background()); err != nil {
				c.log.Warn(ctx, "redundant sign-out failed", "error", err)
			}
		}()
	case hasUser:
		c.writeTimeoutBreadcrumb(ctx, user)
		c.notify.Error(ctx, "That took too long, please try again")
	default:
		c.notify.Error(ctx, "The operation timed out")
	}
}

type authBreadcrumb struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	At     time.Time `json:"at"`
}

func (c *Controller) writeAuthBreadcrumb(ctx context.Context, user *models.User) {
	b, err := json.Marshal(authBreadcrumb{UserID: user.ID, Email: user.Email, At: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := c.ledger.Set(ctx, ledger.SlotLastAuthState, string(b)); err != nil {
		c.log.Debug(ctx, "failed to write auth breadcrumb", "error", err)
	}
}

func (c *Controller) writeTimeoutBreadcrumb(ctx context.Context, user *models.User) {
	crumb := authBreadcrumb{At: time.Now().UTC()}
	if user != nil {
		crumb.UserID = user.ID
		crumb.Email = user.Email
	}
	b, err := json.Marshal(crumb)
	if err != nil {
		return
	}
	if err := c.ledger.Set(ctx, ledger.SlotTimeoutRecovery, string(b)); err != nil {
		c.log.Warn(ctx, "failed to write timeout breadcrumb", "error", err)
	}
}
