// Package backend talks to the application backend that redeems
// authorization codes and serves the player profile.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgellow/login-front/internal/log"
)

const (
	loginPath  = "/v1/login"
	playerPath = "/v1/player"

	// maxErrorBody bounds how much of an error response is kept
	maxErrorBody = 4096
)

// TokenSource returns the current session token, or "" when logged out.
type TokenSource func(ctx context.Context) string

// Client is the application backend client. Every request carries the
// device fingerprint header and, once known, the session token.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	deviceHeader string
	deviceID     string
	token        TokenSource
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default 15s-timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDeviceID sets the fingerprint header sent on every request.
func WithDeviceID(header, id string) Option {
	return func(c *Client) {
		c.deviceHeader = header
		c.deviceID = id
	}
}

// WithTokenSource sets where the Authorization header comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// NewClient creates a backend client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		deviceHeader: "x_client_id",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetDeviceID replaces the fingerprint after construction.
func (c *Client) SetDeviceID(header, id string) {
	c.deviceHeader = header
	c.deviceID = id
}

// SetTokenSource replaces the token source after construction.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.token = ts
}

// LoginRequest is the body of POST /v1/login.
type LoginRequest struct {
	AuthorizationCode string `json:"authorization_code"`
	RedirectURI       string `json:"redirect_uri"`
	CodeVerifier      string `json:"code_verifier,omitempty"`
}

// LoginResult is the redeemed session.
type LoginResult struct {
	Token     string
	AccountID string
}

type loginResponse struct {
	AuthKey     string    `json:"auth_key"`
	AccessToken string    `json:"access_token"`
	Token       string    `json:"token"`
	PlayerID    AccountID `json:"player_id"`
}

// ErrEmptyToken is returned when a 2xx login response carries no token.
var ErrEmptyToken = errors.New("login response carried no token")

// Login redeems an authorization code for a session token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, loginPath, body, &resp); err != nil {
		return nil, err
	}

	token := firstNonEmpty(resp.AuthKey, resp.AccessToken, resp.Token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	return &LoginResult{Token: token, AccountID: string(resp.PlayerID)}, nil
}

// Player is the profile returned by GET /v1/player.
type Player struct {
	AccountID string
	Profile   map[string]any
}

// Player fetches the profile of the current session.
func (c *Client) Player(ctx context.Context) (*Player, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, playerPath, nil, &raw); err != nil {
		return nil, err
	}

	var ids struct {
		PlayerID AccountID `json:"player_id"`
	}
	profile := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil, fmt.Errorf("decoding player: %w", err)
		}
		if err := json.Unmarshal(raw, &profile); err != nil {
			return nil, fmt.Errorf("decoding player: %w", err)
		}
	}
	return &Player{AccountID: string(ids.PlayerID), Profile: profile}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("building %s url: %w", path, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if c.deviceHeader != "" {
		req.Header.Set(c.deviceHeader, c.deviceID)
	}
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.LogDebugWithFields("backend", "Backend request", map[string]any{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   readLimited(resp.Body, maxErrorBody),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// readLimited keeps read failures visible in error messages
func readLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// AccountID accepts player_id as either a JSON string or number.
type AccountID string

func (a *AccountID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = AccountID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("player_id must be a string or number")
	}
	if i, err := n.Int64(); err == nil {
		*a = AccountID(strconv.FormatInt(i, 10))
		return nil
	}
	*a = AccountID(n.String())
	return nil
}
