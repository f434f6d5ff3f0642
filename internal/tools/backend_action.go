package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/optiflow/jarvis/internal/policy"
	"github.com/optiflow/jarvis/internal/reliability"
)

// BackendActionTool forwards model-requested actions (send an email, create a
// task, update a CRM record) to the backend execution endpoint.
type BackendActionTool struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

type backendActionRequest struct {
	ActionType string         `json:"action_type"`
	Parameters map[string]any `json:"parameters"`
	UserID     string         `json:"user_id"`
}

func NewBackendActionTool(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *BackendActionTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BackendActionTool{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (t *BackendActionTool) Name() string { return "execute_backend_action" }

func (t *BackendActionTool) Description() string {
	return "Executes a backend action such as sending an email, creating a calendar event, " +
		"or managing tasks. Specify 'action_type' and the necessary 'parameters'."
}

func (t *BackendActionTool) Invoke(ctx context.Context, params map[string]any, id Identity) Result {
	if t.baseURL == "" || t.apiKey == "" {
		return Errorf("backend not configured for actions")
	}
	if id.UserID == "" {
		return Errorf("user identity not found for backend action")
	}

	actionType, ok := stringParam(params, "action_type")
	if !ok || strings.TrimSpace(actionType) == "" {
		return Errorf("action_type is required")
	}
	actionParams := mapParam(params, "parameters")

	paramText, _ := json.Marshal(actionParams)
	if decision := policy.DecideAction(actionType, string(paramText)); decision.Blocked {
		t.logger.Warn().
			Str("action_type", actionType).
			Str("user_id", id.UserID).
			Str("reason", decision.Reason).
			Msg("backend action refused by policy")
		return Errorf("action %q refused: %s", actionType, decision.Reason)
	}

	body, err := json.Marshal(backendActionRequest{
		ActionType: actionType,
		Parameters: actionParams,
		UserID:     id.UserID,
	})
	if err != nil {
		return Errorf("marshal action request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/actions/execute", bytes.NewReader(body))
	if err != nil {
		return Errorf("build action request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	res, err := t.client.Do(req)
	if err != nil {
		t.logger.Error().Err(err).Str("action_type", actionType).Msg("backend action call failed")
		return Errorf("failed to execute action %s: %v", actionType, err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return Errorf("read action response: %v", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail := strings.TrimSpace(string(payload))
		t.logger.Error().
			Int("status", res.StatusCode).
			Str("action_type", actionType).
			Str("detail", detail).
			Msg("backend action rejected")
		if reliability.IsRetryableHTTPStatus(res.StatusCode) {
			return Errorf("action %s failed with status %d (retryable): %s", actionType, res.StatusCode, detail)
		}
		return Errorf("action %s failed with status %d: %s", actionType, res.StatusCode, detail)
	}

	text := strings.TrimSpace(string(payload))
	if text == "" {
		text = fmt.Sprintf("action %s executed", actionType)
	}
	return Result{Payload: text}
}
