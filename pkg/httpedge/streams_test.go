package httpedge_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpedge "github.com/MCPJam/inspector-sub007/pkg/httpedge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func streamsMux(e *httpedge.Edge) *http.ServeMux {
	mux := http.NewServeMux()
	path, handler, _ := httpedge.RPCStreamHandler(e)
	mux.HandleFunc(path, handler)
	path, handler, _ = httpedge.XRayStreamHandler(e)
	mux.HandleFunc(path, handler)
	return mux
}

func TestRPCStreamHandler_DeliversRetryHintThenPublishedEvent(t *testing.T) {
	e := newTestEdge(t)
	srv := httptest.NewServer(streamsMux(e))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/rpc/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "retry: 1500\n", line)

	e.Hub.Publish("rpc-log", map[string]any{"serverId": "srv1"})

	found := false
	for i := 0; i < 10 && !found; i++ {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			assert.Contains(t, line, "srv1")
			found = true
		}
	}
	assert.True(t, found, "expected a data: frame carrying the published event")
}

func TestXRayStreamHandler_DeliversRetryHint(t *testing.T) {
	e := newTestEdge(t)
	srv := httptest.NewServer(streamsMux(e))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/xray/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "retry: 1500\n", line)
}
