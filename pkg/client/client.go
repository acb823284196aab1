package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/picogrid/squad-sim/pkg/logger"
)

// twirpPrefix is the path prefix of the room service methods.
const twirpPrefix = "/twirp/livekit.RoomService/"

// RoomService is the client for the room server's admin API
type RoomService struct {
	baseURL      string
	httpClient   *http.Client
	tokenManager TokenManager
}

// TokenManager interface for token management
type TokenManager interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// Config holds the configuration for the RoomService client
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	TokenManager TokenManager
}

// Error is a Twirp error body
type Error struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Msg    string `json:"msg"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("HTTP %d: %s: %s", e.Status, e.Code, e.Msg)
}

// NewClient creates a new RoomService client. ws:// and wss:// URLs are
// mapped to their http counterparts.
func NewClient(cfg Config) (*RoomService, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return nil, fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}

	// Set default timeout if not provided
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &RoomService{
		baseURL:      strings.TrimSuffix(u.String(), "/"),
		tokenManager: cfg.TokenManager,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// doRequest posts a Twirp JSON request and decodes the reply into out
func (c *RoomService) doRequest(ctx context.Context, method string, body, out interface{}) error {
	fullURL := c.baseURL + twirpPrefix + method

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.tokenManager != nil {
		token, err := c.tokenManager.GetAccessToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to get access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Errorf("failed to close response body: %v", err)
		}
	}(resp.Body)

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		twirpErr := &Error{Status: resp.StatusCode}
		if json.Unmarshal(bodyBytes, twirpErr) != nil || twirpErr.Msg == "" {
			twirpErr.Msg = string(bodyBytes)
		}
		return twirpErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}
