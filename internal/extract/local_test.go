package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalClient_Extract(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&got) != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{
			GeneratedText: got.Text + "\n" + responseMarker +
				` [{"element": "film", "property": "thickness", "value": 10, "unit": "nm"}]`,
		})
	}))
	defer srv.Close()

	c := NewLocalClient(srv.URL)
	resp, err := c.Extract(context.Background(), "The film is 10 nm thick.")
	require.NoError(t, err)

	assert.True(t, strings.Contains(got.Text, "The film is 10 nm thick."))
	assert.Equal(t, 256, got.MaxNewTokens)
	require.True(t, resp.Parsed)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "10", *resp.Records[0].Value)
	assert.Equal(t, "local:"+srv.URL, c.Model())
	assert.Equal(t, 1, c.Stats.Snapshot().Count)
}

func TestLocalClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewLocalClient(srv.URL).Extract(context.Background(), "x 1")
	var re *RetryableError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusServiceUnavailable, re.StatusCode)
	assert.Equal(t, 3*time.Second, re.RetryAfter)
}

func TestLocalClient_ServerErrorsRetryable(t *testing.T) {
	for _, code := range []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", code)
		}))

		_, err := NewLocalClient(srv.URL).Extract(context.Background(), "x 1")
		srv.Close()
		var re *RetryableError
		require.True(t, errors.As(err, &re), "status %d", code)
		assert.Equal(t, code, re.StatusCode)
		assert.Zero(t, re.RetryAfter)
	}
}

func TestLocalClient_BadRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewLocalClient(srv.URL).Extract(context.Background(), "x 1")
	require.Error(t, err)
	var re *RetryableError
	assert.False(t, errors.As(err, &re))
}

func TestNew(t *testing.T) {
	_, err := New("anthropic", "", "m", "")
	assert.Error(t, err)
	_, err = New("local", "", "", "")
	assert.Error(t, err)
	_, err = New("other", "k", "m", "u")
	assert.Error(t, err)

	e, err := New("local", "", "", "http://localhost:9")
	require.NoError(t, err)
	assert.NotNil(t, StatsOf(e))
	assert.Nil(t, StatsOf(nil))
}
