package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/fansync/config"
)

func newTestClient(t *testing.T, reply string, status int, check func(chatRequest)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(req)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return NewClient(config.LLMConfig{BaseURL: srv.URL, Model: "test-model", NudgeTemperature: 0.7, NudgeMaxTokens: 60})
}

func TestWriteNudge(t *testing.T) {
	c := newTestClient(t, `{"choices":[{"message":{"role":"assistant","content":"  Thank you so much! \n"}}]}`, http.StatusOK, func(req chatRequest) {
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 60, req.MaxTokens)
		assert.InDelta(t, 0.7, req.Temperature, 0.0001)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "The fan tipped $150.00.", req.Messages[1].Content)
	})

	text, err := c.WriteNudge(context.Background(), 150)
	require.NoError(t, err)
	assert.Equal(t, "Thank you so much!", text)
}

func TestRateSentimentClamps(t *testing.T) {
	c := newTestClient(t, `{"choices":[{"message":{"content":"1.7"}}]}`, http.StatusOK, func(req chatRequest) {
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "see you soon", req.Messages[1].Content)
	})

	s, err := c.RateSentiment(context.Background(), "see you soon")
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)
}

func TestRateSentimentUnparseable(t *testing.T) {
	c := newTestClient(t, `{"choices":[{"message":{"content":"positive"}}]}`, http.StatusOK, nil)
	_, err := c.RateSentiment(context.Background(), "hi")
	assert.Error(t, err)
}

func TestRateSentimentRejectsNonFinite(t *testing.T) {
	for _, reply := range []string{"NaN", "Inf", "-Infinity"} {
		c := newTestClient(t, `{"choices":[{"message":{"content":"`+reply+`"}}]}`, http.StatusOK, nil)
		_, err := c.RateSentiment(context.Background(), "hi")
		assert.ErrorIs(t, err, ErrNotFinite, reply)
	}
}

func TestErrorStatus(t *testing.T) {
	c := newTestClient(t, `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`, http.StatusTooManyRequests, nil)
	_, err := c.WriteNudge(context.Background(), 200)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestEmptyChoices(t *testing.T) {
	c := newTestClient(t, `{"choices":[]}`, http.StatusOK, nil)
	_, err := c.WriteNudge(context.Background(), 200)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
