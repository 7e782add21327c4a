package httpedge_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpedge "github.com/MCPJam/inspector-sub007/pkg/httpedge"
	"github.com/stretchr/testify/assert"
)

func resourcesMux(e *httpedge.Edge) *http.ServeMux {
	mux := http.NewServeMux()
	path, handler, _ := httpedge.ResourcesListHandler(e)
	mux.HandleFunc(path, handler)
	path, handler, _ = httpedge.ResourcesReadHandler(e)
	mux.HandleFunc(path, handler)
	return mux
}

func TestResourcesListHandler_UnknownServerIsNotFound(t *testing.T) {
	mux := resourcesMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/resources/list", strings.NewReader(`{"serverId":"does-not-exist"}`))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResourcesReadHandler_UnknownServerIsNotFound(t *testing.T) {
	mux := resourcesMux(newTestEdge(t))

	body := `{"serverId":"does-not-exist","uri":"file:///tmp/a.txt"}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/resources/read", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResourcesListHandler_MethodNotAllowed(t *testing.T) {
	mux := resourcesMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/resources/list", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestResourcesReadHandler_MethodNotAllowed(t *testing.T) {
	mux := resourcesMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/resources/read", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
