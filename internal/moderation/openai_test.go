package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOracle(t *testing.T, content string, status int) *OpenAIOracle {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
			return
		}
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return NewOpenAIOracleWithConfig(cfg, "")
}

func TestOpenAIOracle_Flagged(t *testing.T) {
	o := newTestOracle(t, `{"isProfane": true, "reason": "slur"}`, http.StatusOK)
	res, err := o.Moderate(context.Background(), "badword")
	require.NoError(t, err)
	assert.True(t, res.IsProfane)
	assert.Equal(t, "slur", res.Reason)
}

func TestOpenAIOracle_Clean(t *testing.T) {
	o := newTestOracle(t, `{"isProfane": false, "reason": "no profanity"}`, http.StatusOK)
	res, err := o.Moderate(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, res.IsProfane)
}

func TestOpenAIOracle_Malformed(t *testing.T) {
	for _, content := range []string{"not json", `{"reason": "missing flag"}`} {
		o := newTestOracle(t, content, http.StatusOK)
		_, err := o.Moderate(context.Background(), "hello")
		assert.ErrorIs(t, err, ErrMalformedResponse, content)
	}
}

func TestOpenAIOracle_UpstreamError(t *testing.T) {
	o := newTestOracle(t, "", http.StatusInternalServerError)
	_, err := o.Moderate(context.Background(), "hello")
	assert.Error(t, err)
}
