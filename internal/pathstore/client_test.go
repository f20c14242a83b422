package pathstore

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("Authorization"), string(body)})
		mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "secret")
	t.Cleanup(c.Close)
	return c, &reqs
}

func TestClient_PutNode(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	err := c.PutNode(t.Context(), "patgest/runs/r1/meta", NodeRequest{Value: map[string]any{"n": 1}, Salience: 0.5})
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/kv/patgest/runs/r1/meta", got.Path)
	assert.Equal(t, "Bearer secret", got.Auth)
	assert.JSONEq(t, `{"value":{"n":1},"salience":0.5}`, got.Body)
}

func TestClient_PutNodeError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := c.PutNode(t.Context(), "k", NodeRequest{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Contains(t, err.Error(), "boom")
}

func TestClient_GetNode(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/kv/missing" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"key_path": "a.b", "value": "v"})
	})

	node, err := c.GetNode(t.Context(), "a/b")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "a.b", node.Key)
	assert.Equal(t, "v", node.Value)

	node, err = c.GetNode(t.Context(), "missing")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestClient_DeleteNode(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.DeleteNode(t.Context(), "a/b", true))
	require.NoError(t, c.DeleteNode(t.Context(), "a/c", false))
	assert.Equal(t, "children=true", (*reqs)[0].Query)
	assert.Equal(t, "", (*reqs)[1].Query)
	assert.Equal(t, http.MethodDelete, (*reqs)[1].Method)
}

func TestClient_ListChildren(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"nodes": []map[string]any{
			{"key_path": "p.runs.r1.meta", "value": map[string]any{"documents": 2}},
		}})
	})

	nodes, err := c.ListChildren(t.Context(), "p/runs", 50)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "p.runs.r1.meta", nodes[0].Key)
	assert.Equal(t, "/kv/p/runs/*", (*reqs)[0].Path)
	assert.Equal(t, "limit=50", (*reqs)[0].Query)
}

func TestClient_PutLink(t *testing.T) {
	c, reqs := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	require.NoError(t, c.PutLink(t.Context(), LinkRequest{From: "a", To: "b", Weight: 1}))
	assert.Equal(t, "/links", (*reqs)[0].Path)
	assert.JSONEq(t, `{"from_key":"a","to_key":"b","weight":1}`, (*reqs)[0].Body)
}

func TestLayout(t *testing.T) {
	l := Layout{Prefix: "patgest"}
	assert.Equal(t, "patgest/runs/r1/meta", l.RunMeta("r1"))
	assert.Equal(t, "patgest/runs/r1/documents/US-12345-B2/meta", l.DocumentMeta("r1", "US 12345.B2"))
	assert.Equal(t, "patgest/runs/r1/documents/US1/records", l.Manifest("r1", "US1"))
	assert.Equal(t, "patgest/runs/by_hash/abc", l.ByHash("abc"))
	assert.Equal(t, "patgest/measurements/silicon-film/thickness/01H", l.Measurement("silicon-film", "thickness", "01H"))
}

func TestSegment(t *testing.T) {
	tests := map[string]string{
		"US1234":      "US1234",
		" a/b.c ":     "a-b-c",
		"":            "unknown",
		"../..":       "unknown",
		"under_score": "under_score",
	}
	for in, want := range tests {
		assert.Equal(t, want, Segment(in), "Segment(%q)", in)
	}
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "01H", LastSegment("p/runs/r1/documents/d/records/01H"))
	assert.Equal(t, "r1", LastSegment("p.runs.by_hash.abc.r1"))
	assert.Equal(t, "plain", LastSegment("plain"))
}
