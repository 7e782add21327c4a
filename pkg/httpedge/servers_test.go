package httpedge_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	core "github.com/MCPJam/inspector-sub007"
	httpedge "github.com/MCPJam/inspector-sub007/pkg/httpedge"
	hub "github.com/MCPJam/inspector-sub007/pkg/hub"
	manager "github.com/MCPJam/inspector-sub007/pkg/manager"
	oauthproxy "github.com/MCPJam/inspector-sub007/pkg/oauthproxy"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEdge(t *testing.T) *httpedge.Edge {
	t.Helper()
	cfg := core.Config{}
	h := hub.New()
	mgr := manager.New(cfg, h, nil, nil, nil)
	return &httpedge.Edge{
		Manager: mgr,
		Hub:     h,
		OAuth:   oauthproxy.New(cfg),
		Cfg:     cfg,
	}
}

func serversMux(e *httpedge.Edge) *http.ServeMux {
	mux := http.NewServeMux()
	path, handler, _ := httpedge.ServersHandler(e)
	mux.HandleFunc(path, handler)
	path, handler, _ = httpedge.ServerHandler(e)
	mux.HandleFunc(path, handler)
	return mux
}

func TestServersHandler_ListEmpty(t *testing.T) {
	mux := serversMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/servers", nil)
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var servers []*schema.ServerRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&servers))
	assert.Empty(t, servers)
}

func TestServersHandler_PostRejectsInvalidIdentifier(t *testing.T) {
	mux := serversMux(newTestEdge(t))

	body, _ := json.Marshal(map[string]any{
		"id":     "not-an-identifier!",
		"config": schema.ServerConfig{Kind: schema.TransportHTTP, URL: "https://example.com/mcp"},
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/servers", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServersHandler_MethodNotAllowed(t *testing.T) {
	mux := serversMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/servers", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServerHandler_GetNotFound(t *testing.T) {
	mux := serversMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/servers/does-not-exist", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerHandler_DeleteNotFound(t *testing.T) {
	mux := serversMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/servers/does-not-exist", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
