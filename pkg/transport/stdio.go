package transport

import (
	"bufio"
	"container/ring"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// stdioTransport spawns an MCP server subprocess and frames newline-
// delimited JSON over its stdin/stdout, grounded on the teacher's
// pkg/mcp/server.go RunStdio loop (buffered writer channel + line reader)
// turned around to the client side.
type stdioTransport struct {
	cmd *exec.Cmd

	writeCh chan *schema.RPCMessage
	readCh  chan *schema.RPCMessage

	mu       sync.Mutex
	stderr   *ring.Ring // bounded diagnostic buffer, per §4.1
	closed   bool
	closeErr error

	wg sync.WaitGroup
}

const stderrRingSize = 64

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func openStdio(ctx context.Context, cfg schema.ServerConfig) (Transport, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	if cfg.Cwd != "" {
		cmd.Dir = cfg.Cwd
	}
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	t := &stdioTransport{
		cmd:     cmd,
		writeCh: make(chan *schema.RPCMessage, 32),
		readCh:  make(chan *schema.RPCMessage, 32),
		stderr:  ring.New(stderrRingSize),
	}

	t.wg.Add(3)
	go t.writeLoop(stdin)
	go t.readLoop(stdout)
	go t.stderrLoop(stderr)

	go func() {
		_ = cmd.Wait()
		t.mu.Lock()
		if !t.closed {
			t.closeErr = fmt.Errorf("transport: subprocess exited unexpectedly: %s", t.stderrTailLocked())
		}
		t.mu.Unlock()
		_ = t.Close()
	}()

	return t, nil
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (t *stdioTransport) Send(ctx context.Context, msg *schema.RPCMessage) error {
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

func (t *stdioTransport) Recv() <-chan *schema.RPCMessage {
	return t.readCh
}

func (t *stdioTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeErr
}

func (t *stdioTransport) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stderrTailLocked()
}

func (t *stdioTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.writeCh)
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	t.wg.Wait()
	close(t.readCh)
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *stdioTransport) writeLoop(w io.Writer) {
	defer t.wg.Done()
	bw := bufio.NewWriter(w)
	for msg := range t.writeCh {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := bw.Write(data); err != nil {
			return
		}
		if err := bw.Flush(); err != nil {
			return
		}
	}
}

func (t *stdioTransport) readLoop(r io.Reader) {
	defer t.wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg schema.RPCMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			// Any decode error fails the whole transport (§4.1).
			t.mu.Lock()
			t.closeErr = fmt.Errorf("transport: malformed frame: %w", err)
			t.mu.Unlock()
			go t.Close()
			return
		}
		t.readCh <- &msg
	}
}

func (t *stdioTransport) stderrLoop(r io.Reader) {
	defer t.wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		t.mu.Lock()
		t.stderr.Value = scanner.Text()
		t.stderr = t.stderr.Next()
		t.mu.Unlock()
	}
}

// stderrTailLocked renders the ring buffer contents; caller must hold mu.
func (t *stdioTransport) stderrTailLocked() string {
	var lines []string
	t.stderr.Do(func(v any) {
		if s, ok := v.(string); ok && s != "" {
			lines = append(lines, s)
		}
	})
	return strings.Join(lines, "\n")
}
