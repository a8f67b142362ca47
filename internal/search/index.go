package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is one message as stored in the external full-text index. The
// index knows nothing about participants; authorization is the caller's job.
type Document struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserID         *uuid.UUID `json:"user_id"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Index is the narrow contract against the external full-text index.
type Index interface {
	// Search returns matching message ids ranked by relevance.
	Search(ctx context.Context, term string, limit int) ([]uuid.UUID, error)
	// IndexMessage upserts one document. Best-effort; callers log and move on.
	IndexMessage(ctx context.Context, doc Document) error
}

// MeiliIndex talks to a Meilisearch-compatible index holding the "messages"
// documents.
type MeiliIndex struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Index = (*MeiliIndex)(nil)

func NewMeiliIndex(baseURL, apiKey string) *MeiliIndex {
	return &MeiliIndex{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type meiliSearchRequest struct {
	Q     string `json:"q"`
	Limit int    `json:"limit"`
}

type meiliSearchResponse struct {
	Hits []Document `json:"hits"`
}

func (m *MeiliIndex) Search(ctx context.Context, term string, limit int) ([]uuid.UUID, error) {
	body, err := json.Marshal(meiliSearchRequest{Q: term, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("search index: marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/indexes/messages/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("search index: build request: %w", err)
	}
	m.setHeaders(req)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search index: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search index: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed meiliSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("search index: decode response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(parsed.Hits))
	for _, hit := range parsed.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (m *MeiliIndex) IndexMessage(ctx context.Context, doc Document) error {
	body, err := json.Marshal([]Document{doc})
	if err != nil {
		return fmt.Errorf("search index: marshal document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/indexes/messages/documents", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("search index: build request: %w", err)
	}
	m.setHeaders(req)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search index: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("search index: status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

func (m *MeiliIndex) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}
}
