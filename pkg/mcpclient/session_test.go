package mcpclient_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mcpclient "github.com/MCPJam/inspector-sub007/pkg/mcpclient"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	transport "github.com/MCPJam/inspector-sub007/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory transport.Transport double: Send records the
// frame, Recv delivers whatever the test pushes onto it.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []*schema.RPCMessage
	popIdx  int
	recvCh  chan *schema.RPCMessage
	lastErr string
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{recvCh: make(chan *schema.RPCMessage, 16)}
}

func (f *fakeTransport) Send(ctx context.Context, msg *schema.RPCMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return transport.ErrClosed
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Recv() <-chan *schema.RPCMessage { return f.recvCh }
func (f *fakeTransport) Err() error                      { return nil }
func (f *fakeTransport) LastError() string               { return f.lastErr }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.recvCh)
	}
	return nil
}

func (f *fakeTransport) push(msg *schema.RPCMessage) { f.recvCh <- msg }

// nextSent blocks until the session has sent another frame, in order.
func (f *fakeTransport) nextSent(t *testing.T) *schema.RPCMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		f.mu.Lock()
		if len(f.sent) > f.popIdx {
			m := f.sent[f.popIdx]
			f.popIdx++
			f.mu.Unlock()
			return m
		}
		f.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a sent frame")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func initializeResultMsg(id *json.RawMessage, protoVersion string, caps map[string]any) *schema.RPCMessage {
	result := schema.InitializeResult{
		ProtocolVersion: protoVersion,
		ServerInfo:      schema.ServerInfo{Name: "demo", Version: "1.0"},
		Capabilities:    caps,
	}
	raw, _ := json.Marshal(result)
	return &schema.RPCMessage{Version: schema.RPCVersion, ID: id, Result: raw}
}

func handshake(t *testing.T, tr *fakeTransport, s *mcpclient.Session) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Initialize(context.Background(), "2024-11-05") }()

	req := tr.nextSent(t)
	require.Equal(t, schema.MethodInitialize, req.Method)
	tr.push(initializeResultMsg(req.ID, "2024-11-05", map[string]any{"tools": map[string]any{}}))

	require.NoError(t, <-done)

	initNotify := tr.nextSent(t)
	require.Equal(t, schema.MethodInitialized, initNotify.Method)
}

func TestInitialize_HandshakeSuccess(t *testing.T) {
	tr := newFakeTransport()
	s := mcpclient.New("srv1", tr, schema.ClientInfo{Name: "test", Version: "0.1"})
	defer s.Close()

	handshake(t, tr, s)

	assert.Equal(t, "2024-11-05", s.ProtocolVersion())
	assert.Equal(t, "demo", s.ServerInfo().Name)
	assert.True(t, s.HasCapability(schema.CapTools))
	assert.False(t, s.HasCapability(schema.CapResources))
}

func TestInitialize_EmptyProtocolVersionIsMismatch(t *testing.T) {
	tr := newFakeTransport()
	s := mcpclient.New("srv1", tr, schema.ClientInfo{Name: "test", Version: "0.1"})
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Initialize(context.Background(), "2024-11-05") }()

	req := tr.nextSent(t)
	tr.push(initializeResultMsg(req.ID, "", nil))

	err := <-done
	assert.ErrorIs(t, err, mcpclient.ErrProtocolMismatch)
}

func TestListTools_RoundTrips(t *testing.T) {
	tr := newFakeTransport()
	s := mcpclient.New("srv1", tr, schema.ClientInfo{Name: "test", Version: "0.1"})
	defer s.Close()
	handshake(t, tr, s)

	resCh := make(chan schema.Page[schema.ToolMeta], 1)
	errCh := make(chan error, 1)
	go func() {
		page, err := s.ListTools(context.Background(), "")
		resCh <- page
		errCh <- err
	}()

	req := tr.nextSent(t)
	require.Equal(t, schema.MethodListTools, req.Method)

	page := schema.Page[schema.ToolMeta]{Items: []schema.ToolMeta{{Name: "fs:read_file"}}}
	raw, _ := json.Marshal(page)
	tr.push(&schema.RPCMessage{Version: schema.RPCVersion, ID: req.ID, Result: raw})

	require.NoError(t, <-errCh)
	got := <-resCh
	require.Len(t, got.Items, 1)
	assert.Equal(t, "fs:read_file", got.Items[0].Name)
}

func TestCall_ServerErrorIsReturned(t *testing.T) {
	tr := newFakeTransport()
	s := mcpclient.New("srv1", tr, schema.ClientInfo{Name: "test", Version: "0.1"})
	defer s.Close()
	handshake(t, tr, s)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.ListResources(context.Background(), "")
		errCh <- err
	}()

	req := tr.nextSent(t)
	tr.push(&schema.RPCMessage{
		Version: schema.RPCVersion,
		ID:      req.ID,
		Error:   &schema.RPCError{Code: schema.RPCErrorInvalidParams, Message: "bad cursor"},
	})

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad cursor")
}

func TestCall_ContextCancelledReturnsErrCancelled(t *testing.T) {
	tr := newFakeTransport()
	s := mcpclient.New("srv1", tr, schema.ClientInfo{Name: "test", Version: "0.1"})
	defer s.Close()
	handshake(t, tr, s)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.GetPrompt(ctx, "greeting", nil)
		errCh <- err
	}()

	tr.nextSent(t) // the prompts/get request
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, mcpclient.ErrCancelled)

	// A best-effort $/cancelRequest notification follows.
	cancelMsg := tr.nextSent(t)
	assert.Equal(t, schema.MethodCancelRequest, cancelMsg.Method)
}

func TestSetLogLevel_RequiresCapability(t *testing.T) {
	tr := newFakeTransport()
	s := mcpclient.New("srv1", tr, schema.ClientInfo{Name: "test", Version: "0.1"})
	defer s.Close()
	handshake(t, tr, s) // handshake grants only CapTools

	err := s.SetLogLevel(context.Background(), "debug")
	assert.ErrorIs(t, err, mcpclient.ErrFeatureNotSupported)
}

func TestClose_FailsOutstandingWaiters(t *testing.T) {
	tr := newFakeTransport()
	s := mcpclient.New("srv1", tr, schema.ClientInfo{Name: "test", Version: "0.1"})
	handshake(t, tr, s)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.ListPrompts(context.Background(), "")
		errCh <- err
	}()
	tr.nextSent(t)

	require.NoError(t, s.Close())

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session closed")

	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done() to be closed")
	}
}

func TestReadLoop_DeliversNotificationsToSubscribers(t *testing.T) {
	tr := newFakeTransport()
	s := mcpclient.New("srv1", tr, schema.ClientInfo{Name: "test", Version: "0.1"})
	defer s.Close()
	handshake(t, tr, s)

	received := make(chan string, 1)
	s.SubscribeNotifications(func(method string, params json.RawMessage) {
		received <- method
	}, nil)

	tr.push(&schema.RPCMessage{Version: schema.RPCVersion, Method: schema.MethodToolsListChanged})

	select {
	case m := <-received:
		assert.Equal(t, schema.MethodToolsListChanged, m)
	case <-time.After(time.Second):
		t.Fatal("expected a notification to be delivered")
	}
}
