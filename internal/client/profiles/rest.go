package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/carelinkhq/carelink/internal/client/models"
	"github.com/carelinkhq/carelink/internal/common"
)

// TokenSource supplies the bearer token for authenticated table-API calls.
// The gateway's current session feeds this; an empty string means anonymous.
type TokenSource func() string

// RESTStore implements Store against a PostgREST-style hosted table API.
type RESTStore struct {
	baseURL string
	apiKey  string
	http    *http.Client
	token   TokenSource
}

// NewRESTStore builds a store for the table API rooted at baseURL, e.g.
// "https://project.example.co/rest/v1".
func NewRESTStore(baseURL, apiKey string, client *http.Client, token TokenSource) *RESTStore {
	if client == nil {
		client = http.DefaultClient
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &RESTStore{baseURL: baseURL, apiKey: apiKey, http: client, token: token}
}

func (s *RESTStore) Get(ctx context.Context, userID string) (*models.Profile, error) {
	path := "/profiles?id=eq." + url.QueryEscape(userID)

	req, err := s.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	// Ask for a single object; PostgREST answers 406 when no row matches,
	// which we treat as "absent", not an error.
	req.Header.Set("Accept", "application/vnd.pgrst.object+json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotAcceptable || resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get profile: unexpected status %d", resp.StatusCode)
	}

	var profile models.Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("get profile: decode: %w", err)
	}
	return &profile, nil
}

func (s *RESTStore) Upsert(ctx context.Context, profile *models.Profile) error {
	body, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	req, err := s.newRequest(ctx, http.MethodPost, "/profiles", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	return s.expectNoContent(req, "upsert profile")
}

func (s *RESTStore) SetAvatar(ctx context.Context, userID, avatarURL string) error {
	body, err := json.Marshal(map[string]string{"avatar_url": avatarURL})
	if err != nil {
		return err
	}

	path := "/profiles?id=eq." + url.QueryEscape(userID)
	req, err := s.newRequest(ctx, http.MethodPatch, path, bytes.NewReader(body))
	if err != nil {
		return err
	}

	return s.expectNoContent(req, "set avatar")
}

func (s *RESTStore) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}
	if token := s.token(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}
	return req, nil
}

func (s *RESTStore) expectNoContent(req *http.Request, op string) error {
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s: unexpected status %d: %s", op, resp.StatusCode, string(b))
}
