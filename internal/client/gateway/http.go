package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/carelinkhq/carelink/internal/client/models"
	"github.com/carelinkhq/carelink/internal/common"
	"github.com/carelinkhq/carelink/internal/logging"
)

const (
	defaultRefreshMargin = 30 * time.Second
	defaultEventBuffer   = 16

	// refreshRetryDelay is used when a refresh fails for a reason other
	// than token revocation (e.g. the provider is briefly unreachable).
	refreshRetryDelay = 30 * time.Second
)

// Options configures an HTTPGateway.
type Options struct {
	// BaseURL is the root of the provider's auth API, e.g.
	// "https://project.example.co/auth/v1". Required.
	BaseURL string

	// APIKey is sent as the provider's "apikey" header when non-empty.
	APIKey string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	Logger logging.Logger

	// RefreshMargin is how long before access-token expiry the background
	// refresh fires. Defaults to 30s.
	RefreshMargin time.Duration

	// EventBuffer sizes the auth-event channel. Defaults to 16.
	EventBuffer int
}

// HTTPGateway implements Gateway against a GoTrue-style REST API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     logging.Logger
	margin  time.Duration

	mu      sync.Mutex
	session *models.Session
	refresh *time.Timer
	closed  bool

	events chan models.AuthEvent
}

func NewHTTPGateway(opts Options) (*HTTPGateway, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.RefreshMargin <= 0 {
		opts.RefreshMargin = defaultRefreshMargin
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}

	return &HTTPGateway{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		http:    opts.HTTPClient,
		log:     opts.Logger,
		margin:  opts.RefreshMargin,
		events:  make(chan models.AuthEvent, opts.EventBuffer),
	}, nil
}

// tokenResponse is the provider's token grant payload.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         *models.User `json:"user"`
}

func (g *HTTPGateway) Session(ctx context.Context) (*models.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session, nil
}

func (g *HTTPGateway) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var tr tokenResponse
	err := g.do(ctx, http.MethodPost, "/token?grant_type=password", false,
		map[string]string{"email": email, "password": password}, &tr)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	session := g.buildSession(tr)
	g.setSession(session)
	g.emit(models.AuthEvent{Type: models.EventSignedIn, Session: session})
	return session, nil
}

func (g *HTTPGateway) SignUp(ctx context.Context, email, password string, meta models.UserMetadata) (*models.Session, error) {
	var tr tokenResponse
	err := g.do(ctx, http.MethodPost, "/signup", false, map[string]any{
		"email":    email,
		"password": password,
		"data":     meta,
	}, &tr)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	// Providers requiring email confirmation respond without tokens.
	if tr.AccessToken == "" {
		return nil, nil
	}

	session := g.buildSession(tr)
	g.setSession(session)
	g.emit(models.AuthEvent{Type: models.EventSignedIn, Session: session})
	return session, nil
}

// Restore exchanges a previously persisted refresh token for a fresh session,
// e.g. on process start. On success a SIGNED_IN event is emitted.
func (g *HTTPGateway) Restore(ctx context.Context, refreshToken string) (*models.Session, error) {
	session, err := g.refreshGrant(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	g.emit(models.AuthEvent{Type: models.EventSignedIn, Session: session})
	return session, nil
}

func (g *HTTPGateway) SignOut(ctx context.Context) error {
	err := g.do(ctx, http.MethodPost, "/logout", true, nil, nil)

	// Local state is cleared regardless of whether revocation reached the
	// provider; the session is gone from this client's point of view.
	g.mu.Lock()
	g.session = nil
	g.stopRefreshLocked()
	g.mu.Unlock()

	g.emit(models.AuthEvent{Type: models.EventSignedOut})

	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (g *HTTPGateway) UpdateUser(ctx context.Context, meta models.UserMetadata) (*models.User, error) {
	var user models.User
	err := g.do(ctx, http.MethodPut, "/user", true, map[string]any{"data": meta}, &user)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	g.mu.Lock()
	session := g.session
	if session != nil {
		session.User = &user
	}
	g.mu.Unlock()

	g.emit(models.AuthEvent{Type: models.EventUserUpdated, Session: session})
	return &user, nil
}

func (g *HTTPGateway) ResetPassword(ctx context.Context, email, redirectTo string) error {
	path := "/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	if err := g.do(ctx, http.MethodPost, path, false, map[string]string{"email": email}, nil); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

func (g *HTTPGateway) Events() <-chan models.AuthEvent {
	return g.events
}

func (g *HTTPGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	g.stopRefreshLocked()
	close(g.events)
	return nil
}

// refreshGrant exchanges a refresh token and installs the resulting session.
func (g *HTTPGateway) refreshGrant(ctx context.Context, refreshToken string) (*models.Session, error) {
	var tr tokenResponse
	err := g.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", false,
		map[string]string{"refresh_token": refreshToken}, &tr)
	if err != nil {
		return nil, err
	}
	session := g.buildSession(tr)
	g.setSession(session)
	return session, nil
}

// refreshNow runs in the background timer goroutine.
func (g *HTTPGateway) refreshNow() {
	g.mu.Lock()
	if g.closed || g.session == nil || g.session.RefreshToken == "" {
		g.mu.Unlock()
		return
	}
	token := g.session.RefreshToken
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := g.refreshGrant(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			// Refresh token revoked: this is an external sign-out.
			g.log.Warn(ctx, "refresh token rejected, session ended", "error", err)
			g.mu.Lock()
			g.session = nil
			g.stopRefreshLocked()
			g.mu.Unlock()
			g.emit(models.AuthEvent{Type: models.EventSignedOut})
			return
		}

		g.log.Warn(ctx, "token refresh failed, will retry", "error", err)
		g.mu.Lock()
		if !g.closed {
			g.refresh = time.AfterFunc(refreshRetryDelay, g.refreshNow)
		}
		g.mu.Unlock()
		return
	}

	g.emit(models.AuthEvent{Type: models.EventTokenRefreshed, Session: session})
}

func (g *HTTPGateway) buildSession(tr tokenResponse) *models.Session {
	expiresAt := time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	if tr.ExpiresIn == 0 {
		if exp, err := tokenExpiry(tr.AccessToken); err == nil {
			expiresAt = exp
		}
	}
	if tr.User == nil {
		// Some grant responses omit the user record; recover at least the
		// id from the token so the session is never ownerless.
		if sub, err := tokenSubject(tr.AccessToken); err == nil && sub != "" {
			tr.User = &models.User{ID: sub}
		}
	}
	return &models.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         tr.User,
	}
}

func (g *HTTPGateway) setSession(s *models.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session = s
	g.stopRefreshLocked()
	if g.closed || s == nil || s.RefreshToken == "" {
		return
	}

	delay := time.Until(s.ExpiresAt) - g.margin
	if delay < 0 {
		delay = 0
	}
	g.refresh = time.AfterFunc(delay, g.refreshNow)
}

func (g *HTTPGateway) stopRefreshLocked() {
	if g.refresh != nil {
		g.refresh.Stop()
		g.refresh = nil
	}
}

// emit delivers an event without ever blocking the caller. The controller is
// the single consumer; if it falls behind the buffer the event is dropped
// with a warning rather than wedging a network callback.
func (g *HTTPGateway) emit(ev models.AuthEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	select {
	case g.events <- ev:
	default:
		g.log.Warn(context.Background(), "auth event dropped, consumer too slow", "event", string(ev.Type))
	}
}

// do executes one JSON round trip against the provider API.
func (g *HTTPGateway) do(ctx context.Context, method, path string, authed bool, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("apikey", g.apiKey)
	}
	if authed {
		g.mu.Lock()
		session := g.session
		g.mu.Unlock()
		if session == nil {
			return ErrNoSession
		}
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+session.AccessToken)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp.StatusCode); err != nil {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.log.Debug(ctx, "provider returned error",
			"status", resp.StatusCode, "path", path, "body", string(b))
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapStatus translates provider HTTP statuses into sentinel errors.
func mapStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusBadRequest, code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrInvalidCredentials
	case code == http.StatusConflict, code == http.StatusUnprocessableEntity:
		return ErrUserExists
	case code >= 500:
		return ErrUnavailable
	default:
		return fmt.Errorf("unexpected status %d", code)
	}
}
