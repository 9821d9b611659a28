package paystack

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

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

const (
	defaultBaseURL = "https://api.paystack.co"
	defaultTimeout = 10 * time.Second
)

// APIError is a response the processor produced on purpose: a non-2xx
// status or an envelope with status=false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack: %s (status=%d)", e.Message, e.StatusCode)
}

// IsTemporary reports whether retrying the same request later may succeed.
func (e *APIError) IsTemporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsTemporary classifies any client error. Transport failures, timeouts and
// 5xx are temporary; a 4xx or a declined request is not.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTemporary()
	}
	return true
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func NewClientFromEnv() *Client {
	return NewClient(
		strings.TrimSpace(env.GetEnv("PAYSTACK_BASE_URL", defaultBaseURL)),
		env.GetEnvSeconds("PAYSTACK_TIMEOUT_SECONDS", defaultTimeout),
	)
}

// InitializeTransaction creates a hosted checkout session.
func (c *Client) InitializeTransaction(ctx context.Context, secretKey string, in InitializeRequest) (*InitializeResponse, error) {
	if strings.TrimSpace(in.Reference) == "" {
		return nil, errors.New("reference is required")
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", in.Amount)
	}

	var out InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", secretKey, in, &out); err != nil {
		return nil, err
	}
	if out.AuthorizationURL == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "initialize response without authorization_url"}
	}
	return &out, nil
}

// VerifyTransaction fetches the authoritative state of a transaction.
func (c *Client) VerifyTransaction(ctx context.Context, secretKey, reference string) (*Transaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, errors.New("reference is required")
	}

	var out Transaction
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), secretKey, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, secretKey string, in any, out any) error {
	if strings.TrimSpace(secretKey) == "" {
		return errors.New("paystack secret key is not configured")
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paystack %s %s: read body: %w", method, path, err)
	}

	var envl envelope
	decodeErr := json.Unmarshal(raw, &envl)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(envl.Message)
		if decodeErr != nil || msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return &APIError{StatusCode: http.StatusBadGateway, Message: "malformed response: " + decodeErr.Error()}
	}
	if !envl.Status {
		return &APIError{StatusCode: resp.StatusCode, Message: envl.Message}
	}
	if out != nil && len(envl.Data) > 0 {
		if err := json.Unmarshal(envl.Data, out); err != nil {
			return &APIError{StatusCode: http.StatusBadGateway, Message: "malformed data: " + err.Error()}
		}
	}
	return nil
}
