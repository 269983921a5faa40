package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

const maxErrorBody = 1 << 20

// LoginRequest is the body posted to the login endpoint.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceID   string `json:"device_id"`
	DeviceInfo string `json:"device_info,omitempty"`
}

// Validate checks the payload before it leaves the client.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.DeviceID, validation.Required),
	)
}

// LoginResponse is the token envelope returned by the login endpoint.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Client talks to the backend auth endpoints through the shared HTTP client.
type Client struct {
	http            *http.Client
	baseURL         string
	loginEndpoint   string
	profileEndpoint string
	logoutEndpoint  string
	logger          Logger
}

// NewClient returns an API client. httpClient should be the binder's client so
// requests carry the bound token and feed the unauthorized signal.
func NewClient(httpClient *http.Client, cfg Config, logger Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:            httpClient,
		baseURL:         strings.TrimSuffix(cfg.GetBaseURL(), "/"),
		loginEndpoint:   cfg.GetLoginEndpoint(),
		profileEndpoint: cfg.GetProfileEndpoint(),
		logoutEndpoint:  cfg.GetLogoutEndpoint(),
		logger:          normalizeLogger(logger),
	}
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, payload LoginRequest) (*LoginResponse, error) {
	if err := payload.Validate(); err != nil {
		return nil, newError(ErrInvalidCredentials, err, map[string]any{
			"endpoint": c.loginEndpoint,
			"detail":   err.Error(),
		})
	}

	out := &LoginResponse{}
	status, detail, err := c.do(ctx, http.MethodPost, c.loginEndpoint, payload, out)
	if err != nil {
		return nil, newError(ErrNetworkFailure, err, map[string]any{
			"endpoint": c.loginEndpoint,
		})
	}

	if status < 200 || status > 299 {
		base := ErrInvalidCredentials
		if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
			base = ErrNetworkFailure
		}
		return nil, newError(base, fmt.Errorf("login rejected with status %d", status), errorMeta(c.loginEndpoint, status, detail))
	}

	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, goerrors.New("login response missing access token", goerrors.CategoryInternal).
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{"endpoint": c.loginEndpoint})
	}

	return out, nil
}

// Profile fetches the profile of the bound token.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	user := &User{}
	status, detail, err := c.do(ctx, http.MethodGet, c.profileEndpoint, nil, user)
	if err != nil {
		return nil, newError(ErrProfileFetchFailure, newError(ErrNetworkFailure, err, nil), map[string]any{
			"endpoint": c.profileEndpoint,
		})
	}

	if status < 200 || status > 299 {
		return nil, newError(ErrProfileFetchFailure, fmt.Errorf("profile request failed with status %d", status), errorMeta(c.profileEndpoint, status, detail))
	}

	if user.ID == "" {
		return nil, newError(ErrProfileFetchFailure, fmt.Errorf("profile response without id"), map[string]any{
			"endpoint": c.profileEndpoint,
		})
	}

	return user, nil
}

// Logout notifies the backend that the bound token is no longer used.
func (c *Client) Logout(ctx context.Context) error {
	status, detail, err := c.do(ctx, http.MethodPost, c.logoutEndpoint, nil, nil)
	if err != nil {
		return newError(ErrNetworkFailure, err, map[string]any{
			"endpoint": c.logoutEndpoint,
		})
	}

	if status < 200 || status > 299 {
		base := ErrNetworkFailure
		if status == http.StatusUnauthorized {
			base = ErrUnauthorizedMidSession
		}
		return newError(base, fmt.Errorf("logout failed with status %d", status), errorMeta(c.logoutEndpoint, status, detail))
	}

	return nil
}

// do performs a JSON request. A non 2xx status is not an error, the status and
// the backend detail message are returned instead.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) (int, string, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to encode request body")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request %s %s failed: %v", method, endpoint, err)
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, parseDetail(raw), nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp.StatusCode, "", goerrors.Wrap(err, goerrors.CategoryInternal, "unable to decode response body")
		}
	}

	return resp.StatusCode, "", nil
}

// parseDetail extracts a human readable "detail" string. Structured details
// (for example validation lists) are ignored.
func parseDetail(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var envelope struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	detail, _ := envelope.Detail.(string)
	return strings.TrimSpace(detail)
}

func errorMeta(endpoint string, status int, detail string) map[string]any {
	meta := map[string]any{
		"endpoint": endpoint,
		"status":   status,
	}
	if detail != "" {
		meta["detail"] = detail
	}
	return meta
}
