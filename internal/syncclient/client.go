package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sync-party/internal/models"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

// Client talks to the session coordinator's HTTP surface.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// SessionState is the coordinator's snapshot of a room. LastUpdate is an
// opaque change-detection token, never parsed as a timestamp.
type SessionState struct {
	Code           string  `json:"code"`
	HostID         string  `json:"hostId"`
	CurrentMusicID *string `json:"currentMusicId"`
	IsPlaying      bool    `json:"isPlaying"`
	CurrentTime    float64 `json:"currentTime"`
	LastUpdate     string  `json:"lastUpdate"`
}

type CreateResponse struct {
	Code      string    `json:"code"`
	HostID    string    `json:"hostId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UpdateRequest carries a sparse state push: nil fields are omitted from the
// wire and keep their server-side value.
type UpdateRequest struct {
	Code           string   `json:"code"`
	CurrentMusicID *string  `json:"currentMusicId,omitempty"`
	IsPlaying      *bool    `json:"isPlaying,omitempty"`
	CurrentTime    *float64 `json:"currentTime,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (c *Client) CreateSession(ctx context.Context, hostID string) (*CreateResponse, error) {
	var out CreateResponse
	if err := c.do(ctx, http.MethodPost, "/sync", map[string]string{"hostId": hostID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSession(ctx context.Context, code string) (*SessionState, error) {
	var out SessionState
	if err := c.do(ctx, http.MethodGet, "/sync?code="+url.QueryEscape(code), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSession(ctx context.Context, req UpdateRequest) (*SessionState, error) {
	var out SessionState
	if err := c.do(ctx, http.MethodPut, "/sync", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodDelete, "/sync?code="+url.QueryEscape(code), nil, nil)
}

func (c *Client) ListTracks(ctx context.Context) ([]models.Track, error) {
	var out []models.Track
	if err := c.do(ctx, http.MethodGet, "/music", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	var eb errorBody
	_ = json.NewDecoder(resp.Body).Decode(&eb)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusGone:
		return ErrExpired
	default:
		if strings.TrimSpace(eb.Error) != "" {
			return fmt.Errorf("sync %d: %s", resp.StatusCode, eb.Error)
		}
		return fmt.Errorf("sync status %d", resp.StatusCode)
	}
}
