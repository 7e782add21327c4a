package httpedge_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	core "github.com/MCPJam/inspector-sub007"
	chat "github.com/MCPJam/inspector-sub007/pkg/chat"
	httpedge "github.com/MCPJam/inspector-sub007/pkg/httpedge"
	"github.com/stretchr/testify/assert"
)

func chatMux(e *httpedge.Edge) *http.ServeMux {
	mux := http.NewServeMux()
	path, handler, _ := httpedge.ChatHandler(e)
	mux.HandleFunc(path, handler)
	path, handler, _ = httpedge.ChatApproveHandler(e)
	mux.HandleFunc(path, handler)
	return mux
}

func newTestEdgeWithChat(t *testing.T) *httpedge.Edge {
	t.Helper()
	e := newTestEdge(t)
	e.Chat = chat.New(e.Manager, core.Config{}, nil, nil)
	return e
}

func TestChatHandler_MethodNotAllowed(t *testing.T) {
	mux := chatMux(newTestEdgeWithChat(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/chat", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestChatHandler_MissingAPIKeyIsBadRequest(t *testing.T) {
	mux := chatMux(newTestEdgeWithChat(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_UnsupportedProviderIsBadRequest(t *testing.T) {
	mux := chatMux(newTestEdgeWithChat(t))

	body := `{"apiKey":"x","provider":"openai","messages":[{"role":"user","content":"hi"}]}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatApproveHandler_NoPendingApprovalIsNotFound(t *testing.T) {
	mux := chatMux(newTestEdgeWithChat(t))

	body := `{"turnId":"t1","toolCallId":"c1","decision":"approve"}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat/approve", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatApproveHandler_MethodNotAllowed(t *testing.T) {
	mux := chatMux(newTestEdgeWithChat(t))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/chat/approve", nil)
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
