package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// httpTransport implements the MCP Streamable-HTTP session dance (§4.1): an
// initial POST that returns a session id, subsequent POSTs using that id,
// and a GET establishing a long-lived SSE stream for server-initiated
// messages. Grounded on the teacher's pkg/mcp/client/client.go Client.listen
// reconnect-loop shape, adapted to the generic Transport interface.
type httpTransport struct {
	url     string
	headers map[string]string
	client  *http.Client

	mu        sync.Mutex
	sessionID string
	closed    bool
	lastErr   string

	writeCh chan *schema.RPCMessage
	readCh  chan *schema.RPCMessage

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func openHTTP(ctx context.Context, cfg schema.ServerConfig, webMode bool) (Transport, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid url: %w", err)
	}
	if webMode && u.Scheme != "https" {
		return nil, fmt.Errorf("transport: web mode requires https, got %q", u.Scheme)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	t := &httpTransport{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{},
		writeCh: make(chan *schema.RPCMessage, 64),
		readCh:  make(chan *schema.RPCMessage, 64),
		cancel:  cancel,
	}

	t.wg.Add(2)
	go t.writeLoop(listenCtx)
	go t.listen(listenCtx)

	return t, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (t *httpTransport) Send(ctx context.Context, msg *schema.RPCMessage) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case t.writeCh <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *httpTransport) Recv() <-chan *schema.RPCMessage { return t.readCh }

func (t *httpTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastErr == "" {
		return nil
	}
	return fmt.Errorf("transport: %s", t.lastErr)
}

func (t *httpTransport) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *httpTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	close(t.writeCh)
	t.wg.Wait()
	close(t.readCh)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// writeLoop POSTs each outbound frame, attaching the session-id header once
// it has been captured from a prior response (§4.1 framing).
func (t *httpTransport) writeLoop(ctx context.Context) {
	defer t.wg.Done()
	for msg := range t.writeCh {
		if err := t.post(ctx, msg); err != nil {
			t.mu.Lock()
			t.lastErr = err.Error()
			t.mu.Unlock()
		}
	}
}

func (t *httpTransport) post(ctx context.Context, msg *schema.RPCMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var attempt func(retry bool) error
	attempt = func(retry bool) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, strings.NewReader(string(data)))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
		t.mu.Lock()
		sid := t.sessionID
		t.mu.Unlock()
		if sid != "" {
			req.Header.Set("Mcp-Session-Id", sid)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if !retry {
				return attempt(true)
			}
			return err
		}
		defer resp.Body.Close()

		if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
			t.mu.Lock()
			t.sessionID = sid
			t.mu.Unlock()
		}

		if resp.StatusCode >= 300 {
			return fmt.Errorf("http %d from %s", resp.StatusCode, t.url)
		}

		ct := resp.Header.Get("Content-Type")
		switch {
		case strings.Contains(ct, "text/event-stream"):
			return t.decodeSSE(resp.Body)
		default:
			var out schema.RPCMessage
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return nil // empty body (notification ack)
			}
			t.readCh <- &out
			return nil
		}
	}
	return attempt(false)
}

// listen opens the long-lived GET SSE stream for server-initiated
// messages, with capped exponential backoff on reconnect, grounded on the
// teacher's Client.listen.
func (t *httpTransport) listen(ctx context.Context) {
	defer t.wg.Done()

	const (
		minBackoff = 1 * time.Second
		maxBackoff = 30 * time.Second
	)
	backoff := minBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
		if err != nil {
			return
		}
		req.Header.Set("Accept", "text/event-stream")
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}
		t.mu.Lock()
		sid := t.sessionID
		t.mu.Unlock()
		if sid != "" {
			req.Header.Set("Mcp-Session-Id", sid)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
		} else {
			if resp.StatusCode == http.StatusMethodNotAllowed {
				resp.Body.Close()
				return
			}
			if resp.StatusCode == http.StatusOK {
				if err := t.decodeSSE(resp.Body); err != nil {
					resp.Body.Close()
					t.mu.Lock()
					t.lastErr = err.Error()
					t.mu.Unlock()
					go t.Close()
					return
				}
				backoff = minBackoff
			}
			resp.Body.Close()
		}

		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// decodeSSE reads "data: <json>" frames (one JSON-RPC message per frame,
// §4.1 framing) until the body closes.
func (t *httpTransport) decodeSSE(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		var msg schema.RPCMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			// Any decode error fails the whole transport (§4.1), matching
			// the stdio transport's readLoop: listen closes the transport on
			// it; on a POST response it is recorded as the last error.
			return fmt.Errorf("transport: malformed frame: %w", err)
		}
		t.readCh <- &msg
	}
	return scanner.Err()
}
