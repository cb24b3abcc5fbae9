package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRouterComplete(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		assert.Equal(t, "Bearer sk-or-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://edai.example", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "EDAI", r.Header.Get("X-Title"))
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	c := NewOpenRouterClient(" sk-or-test ", server.URL, "https://edai.example", "EDAI", nil)
	text, err := c.Complete(context.Background(), "openai/gpt-4o", []Message{
		SystemMessage("be fair"),
		UserMessage("case text", ImagePart("image/png", []byte{1, 2, 3})),
	}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)

	assert.Equal(t, "openai/gpt-4o", gotBody["model"])
	assert.InDelta(t, 0.7, gotBody["temperature"], 1e-9)
	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "be fair", msgs[0].(map[string]any)["content"])
	parts := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].(map[string]any)["type"])
	img := parts[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.Equal(t, "data:image/png;base64,AQID", img["image_url"].(map[string]any)["url"])
}

func TestOpenRouterMissingKeyMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := NewOpenRouterClient("   ", server.URL, "", "", nil)
	_, err := c.Complete(context.Background(), "m", []Message{UserMessage("x")}, 0.7)
	require.ErrorIs(t, err, ErrConfigurationMissing)
	assert.Zero(t, calls.Load())
}

func TestOpenRouterUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewOpenRouterClient("sk", server.URL, "", "", nil)
	_, err := c.Complete(context.Background(), "m", []Message{UserMessage("x")}, 0.7)
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue), "expected UpstreamError, got %v", err)
	assert.Equal(t, http.StatusTooManyRequests, ue.StatusCode)
	assert.Contains(t, ue.Body, "rate limited")
	assert.Equal(t, "openrouter", ue.Provider)
}

func TestOpenRouterNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	c := NewOpenRouterClient("sk", server.URL, "", "", nil)
	_, err := c.Complete(context.Background(), "m", []Message{UserMessage("x")}, 0.7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestOpenRouterContextCancelled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewOpenRouterClient("sk", server.URL, "", "", nil)
	_, err := c.Complete(ctx, "m", []Message{UserMessage("x")}, 0.7)
	require.ErrorIs(t, err, context.Canceled)
}
