package httpedge_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	httpedge "github.com/MCPJam/inspector-sub007/pkg/httpedge"
	"github.com/stretchr/testify/assert"
)

func oauthMux(e *httpedge.Edge) *http.ServeMux {
	mux := http.NewServeMux()
	path, handler, _ := httpedge.OAuthProxyHandler(e)
	mux.HandleFunc(path, handler)
	path, handler, _ = httpedge.OAuthMetadataHandler(e)
	mux.HandleFunc(path, handler)
	return mux
}

func TestOAuthMetadataHandler_MissingURL(t *testing.T) {
	mux := oauthMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/oauth/metadata", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOAuthMetadataHandler_MethodNotAllowed(t *testing.T) {
	mux := oauthMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/oauth/metadata", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestOAuthMetadataHandler_UnreachableTarget(t *testing.T) {
	mux := oauthMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/oauth/metadata?url=https://127.0.0.1:1/never", nil)
	mux.ServeHTTP(w, r)

	// httpErr maps core.ErrServerUnreachable to 504 Gateway Timeout.
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestOAuthProxyHandler_MethodNotAllowed(t *testing.T) {
	mux := oauthMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/oauth/proxy", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestOAuthProxyHandler_RejectsMalformedURL(t *testing.T) {
	mux := oauthMux(newTestEdge(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/oauth/proxy", strings.NewReader(`{"url":"not-a-url"}`))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
