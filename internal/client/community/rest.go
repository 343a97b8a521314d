package community

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/carelinkhq/carelink/internal/common"
)

// TokenSource supplies the bearer token for authenticated table-API calls.
type TokenSource func() string

// RESTVoteStore implements VoteStore against the hosted table API.
type RESTVoteStore struct {
	baseURL string
	apiKey  string
	http    *http.Client
	token   TokenSource
}

func NewRESTVoteStore(baseURL, apiKey string, client *http.Client, token TokenSource) *RESTVoteStore {
	if client == nil {
		client = http.DefaultClient
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &RESTVoteStore{baseURL: baseURL, apiKey: apiKey, http: client, token: token}
}

func (s *RESTVoteStore) HasVote(ctx context.Context, featureID, userID string) (bool, error) {
	path := "/feature_votes?feature_id=eq." + url.QueryEscape(featureID) +
		"&user_id=eq." + url.QueryEscape(userID) + "&select=id"

	req, err := s.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("has vote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("has vote: unexpected status %d", resp.StatusCode)
	}

	var rows []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return false, fmt.Errorf("has vote: decode: %w", err)
	}
	return len(rows) > 0, nil
}

func (s *RESTVoteStore) Create(ctx context.Context, featureID, userID string) (bool, error) {
	exists, err := s.HasVote(ctx, featureID, userID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	body, err := json.Marshal(map[string]string{
		"feature_id": featureID,
		"user_id":    userID,
	})
	if err != nil {
		return false, err
	}

	req, err := s.newRequest(ctx, http.MethodPost, "/feature_votes", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	// The unique (feature_id, user_id) index makes a concurrent duplicate a
	// no-op rather than an error.
	req.Header.Set("Prefer", "resolution=ignore-duplicates")

	resp, err := s.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("create vote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("create vote: unexpected status %d: %s", resp.StatusCode, string(b))
	}
	return true, nil
}

func (s *RESTVoteStore) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
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
