package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"message":{"role":"assistant","content":"all green"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o", srv.URL+"/", time.Second, zaptest.NewLogger(t))
	text, err := c.Complete(context.Background(), "OpsInsight assistant.", "cluster status?")
	require.NoError(t, err)
	assert.Equal(t, "all green", text)

	assert.Equal(t, "gpt-4o", got["model"])
	messages := got["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, map[string]interface{}{"role": "system", "content": "OpsInsight assistant."}, messages[0])
	assert.Equal(t, map[string]interface{}{"role": "user", "content": "cluster status?"}, messages[1])
}

func TestOpenAIClient_CompleteWithImage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"a latency graph"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-4o", srv.URL, time.Second, zaptest.NewLogger(t))
	text, err := c.CompleteWithImage(context.Background(), "what is this?", "data:image/png;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, "a latency graph", text)

	messages := got["messages"].([]interface{})
	require.Len(t, messages, 1, "image requests carry no system message")
	msg := messages[0].(map[string]interface{})
	assert.Equal(t, "user", msg["role"])

	parts := msg["content"].([]interface{})
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]interface{}{"type": "text", "text": "what is this?"}, parts[0])
	assert.Equal(t, map[string]interface{}{
		"type":      "image_url",
		"image_url": map[string]interface{}{"url": "data:image/png;base64,aGk="},
	}, parts[1])
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"non-200", http.StatusTooManyRequests, `{"error":"rate limited"}`, "429"},
		{"bad json", http.StatusOK, `not json`, "解析响应失败"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "choices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewOpenAIClient("k", "m", srv.URL, time.Second, zaptest.NewLogger(t))
			_, err := c.Complete(context.Background(), "s", "p")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpenAIClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewOpenAIClient("k", "m", srv.URL, time.Second, zaptest.NewLogger(t))
	_, err := c.Complete(ctx, "s", "p")
	assert.ErrorIs(t, err, context.Canceled)
}
