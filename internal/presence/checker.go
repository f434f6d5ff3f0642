package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Checker asks the external presence service whether a user is still active.
type Checker interface {
	CheckPresence(ctx context.Context, userID string) (inactive bool, err error)
}

// HTTPChecker polls the backend presence endpoint.
type HTTPChecker struct {
	baseURL string
	client  *http.Client
}

type presenceCheckRequest struct {
	UserID string `json:"userId"`
}

type presenceCheckResponse struct {
	Inactive bool `json:"inactive"`
}

func NewHTTPChecker(baseURL string, timeout time.Duration) *HTTPChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPChecker{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPChecker) CheckPresence(ctx context.Context, userID string) (bool, error) {
	body, err := json.Marshal(presenceCheckRequest{UserID: userID})
	if err != nil {
		return false, fmt.Errorf("marshal presence request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/presence/check", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build presence request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("presence check: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
		return false, fmt.Errorf("presence check status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed presenceCheckResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode presence response: %w", err)
	}
	return parsed.Inactive, nil
}
