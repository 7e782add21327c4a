package httpedge_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpedge "github.com/MCPJam/inspector-sub007/pkg/httpedge"
	"github.com/stretchr/testify/assert"
)

func toolsMux(e *httpedge.Edge) *http.ServeMux {
	mux := http.NewServeMux()
	path, handler, _ := httpedge.ToolsListHandler(e)
	mux.HandleFunc(path, handler)
	path, handler, _ = httpedge.ToolsExecuteHandler(e)
	mux.HandleFunc(path, handler)
	return mux
}

func TestToolsListHandler_MethodNotAllowed(t *testing.T) {
	mux := toolsMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/tools/list", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestToolsListHandler_UnknownServerIsNotFound(t *testing.T) {
	mux := toolsMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/tools/list", strings.NewReader(`{"serverId":"does-not-exist"}`))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToolsExecuteHandler_UnknownServerIsNotFound(t *testing.T) {
	mux := toolsMux(newTestEdge(t))

	body := `{"serverId":"does-not-exist","toolName":"fs:read_file","parameters":{}}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/tools/execute", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestToolsExecuteHandler_MethodNotAllowed(t *testing.T) {
	mux := toolsMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/tools/execute", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
