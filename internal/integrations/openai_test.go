package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigured(t *testing.T) {
	assert.False(t, NewOpenAIClient("", "", 0).Configured())
	assert.False(t, NewOpenAIClient("sk-COLOQUE_SUA_CHAVE_AQUI", "", 0).Configured(),
		"placeholder key counts as unconfigured")
	assert.True(t, NewOpenAIClient("sk-real", "", 0).Configured())
}

func TestCreateChatCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model       string        `json:"model"`
			Messages    []ChatMessage `json:"messages"`
			Temperature float64       `json:"temperature"`
			MaxTokens   int           `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-3.5-turbo", req.Model)
		assert.Equal(t, 0.7, req.Temperature)
		assert.Equal(t, 500, req.MaxTokens)
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, "system", req.Messages[0].Role)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hi there"}},
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", "", 5*time.Second).WithBaseURL(srv.URL)
	reply, err := client.CreateChatCompletion(context.Background(), []ChatMessage{
		{Role: "system", Content: "Be concise."},
		{Role: "user", Content: "hello"},
	}, 0.7, 500)
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)
}

func TestCreateChatCompletion_Unconfigured(t *testing.T) {
	client := NewOpenAIClient("", "", 0)
	_, err := client.CreateChatCompletion(context.Background(), nil, 0.7, 500)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreateChatCompletion_ProviderErrorKeepsWording(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"message": "You exceeded your current quota, please check your plan and billing details.",
				"type":    "insufficient_quota",
			},
		})
	}))
	defer srv.Close()

	client := NewOpenAIClient("sk-test", "", 5*time.Second).WithBaseURL(srv.URL)
	_, err := client.CreateChatCompletion(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0.7, 500)
	require.Error(t, err)
	assert.True(t, IsQuotaError(err), "quota exhaustion stays classifiable from the error text")
}

func TestIsQuotaError(t *testing.T) {
	assert.False(t, IsQuotaError(nil))
	assert.False(t, IsQuotaError(errors.New("connection refused")))
	assert.True(t, IsQuotaError(errors.New("status 429: insufficient QUOTA")))
	assert.True(t, IsQuotaError(errors.New("billing hard limit reached")))
}
