package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrInvalidOrExpired is the typed form of the server's invalid/consumed/
// expired code rejection. The orchestrator's bounded retry keys on it.
var ErrInvalidOrExpired = errors.New("invalid or expired code")

// APIError carries any other non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// VerificationAPI is the server surface the orchestrator drives.
type VerificationAPI interface {
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetCode(ctx context.Context, email string, code string) error
	ResetPassword(ctx context.Context, email string, code string, newPassword string) error
	VerifyEmail(ctx context.Context, email string, code string) error
	ResendVerification(ctx context.Context, email string) error
}

type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *APIClient) ForgotPassword(ctx context.Context, email string) error {
	return c.post(ctx, "/auth/forgot-password", map[string]string{"email": email})
}

func (c *APIClient) VerifyResetCode(ctx context.Context, email string, code string) error {
	return c.post(ctx, "/auth/verify-reset-code", map[string]string{"email": email, "code": code})
}

func (c *APIClient) ResetPassword(ctx context.Context, email string, code string, newPassword string) error {
	return c.post(ctx, "/auth/reset-password", map[string]string{
		"email":       email,
		"code":        code,
		"newPassword": newPassword,
	})
}

func (c *APIClient) VerifyEmail(ctx context.Context, email string, code string) error {
	return c.post(ctx, "/auth/verify-email", map[string]string{"email": email, "code": code})
}

func (c *APIClient) ResendVerification(ctx context.Context, email string) error {
	return c.post(ctx, "/auth/resend-verification", map[string]string{"email": email})
}

func (c *APIClient) post(ctx context.Context, path string, payload map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	response, err := httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 300 {
		return nil
	}
	if response.StatusCode == http.StatusUnprocessableEntity {
		return ErrInvalidOrExpired
	}
	return &APIError{Status: response.StatusCode, Message: readMessage(response.Body)}
}

func readMessage(body io.Reader) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&parsed); err != nil {
		return ""
	}
	return parsed.Message
}
