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
)

// KnowledgeBaseTool queries the backend knowledge search endpoint. When the
// backend is unconfigured it returns a clearly-labeled simulated result so
// conversations remain testable without live credentials.
type KnowledgeBaseTool struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

type knowledgeSearchRequest struct {
	Query             string `json:"query"`
	UserID            string `json:"userId"`
	KnowledgeBaseType string `json:"knowledgeBaseType,omitempty"`
}

type knowledgeDocument struct {
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

type knowledgeSearchResponse struct {
	Documents []knowledgeDocument `json:"documents"`
}

// FormattedDocument is the reshaped entry returned to the model.
type FormattedDocument struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

func NewKnowledgeBaseTool(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) *KnowledgeBaseTool {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &KnowledgeBaseTool{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (t *KnowledgeBaseTool) Name() string { return "query_knowledge_base" }

func (t *KnowledgeBaseTool) Description() string {
	return "Queries the knowledge base for company documentation and team resources. " +
		"Specify 'query_text'; optionally specify 'kb_type' ('personal', 'team', or 'organization')."
}

func (t *KnowledgeBaseTool) Invoke(ctx context.Context, params map[string]any, id Identity) Result {
	queryText, ok := stringParam(params, "query_text")
	if !ok || strings.TrimSpace(queryText) == "" {
		return Errorf("query_text is required")
	}
	kbType, _ := stringParam(params, "kb_type")

	if t.baseURL == "" || t.apiKey == "" {
		t.logger.Warn().Str("query", queryText).Msg("knowledge backend not configured, returning simulated result")
		scope := kbType
		if scope == "" {
			scope = "all"
		}
		return Success(map[string]any{
			"results": []string{
				fmt.Sprintf("Simulated knowledge base result for query: '%s' in '%s' KB.", queryText, scope),
			},
		})
	}

	body, err := json.Marshal(knowledgeSearchRequest{
		Query:             queryText,
		UserID:            id.UserID,
		KnowledgeBaseType: kbType,
	})
	if err != nil {
		return Errorf("marshal search request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/knowledge/search", bytes.NewReader(body))
	if err != nil {
		return Errorf("build search request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	res, err := t.client.Do(req)
	if err != nil {
		t.logger.Error().Err(err).Str("query", queryText).Msg("knowledge search call failed")
		return Errorf("error querying knowledge base: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		t.logger.Error().
			Int("status", res.StatusCode).
			Str("detail", strings.TrimSpace(string(detail))).
			Msg("knowledge search rejected")
		return Errorf("failed to query knowledge base: %d", res.StatusCode)
	}

	var parsed knowledgeSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Errorf("decode search response: %v", err)
	}

	formatted := make([]FormattedDocument, 0, len(parsed.Documents))
	for _, doc := range parsed.Documents {
		source := "Unknown Source"
		if s, ok := doc.Metadata["source"].(string); ok && s != "" {
			source = s
		}
		title := doc.Title
		if title == "" {
			title = "Untitled Document"
		}
		formatted = append(formatted, FormattedDocument{
			Title:   title,
			Content: doc.Content,
			Source:  source,
			Score:   doc.Similarity,
		})
	}

	if len(formatted) == 0 {
		return Success(map[string]any{
			"message": fmt.Sprintf("No results found for query: '%s'", queryText),
			"results": []FormattedDocument{},
		})
	}

	return Success(map[string]any{
		"message": fmt.Sprintf("Found %d relevant documents.", len(formatted)),
		"results": formatted,
	})
}
