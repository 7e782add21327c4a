package httpedge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	hub "github.com/MCPJam/inspector-sub007/pkg/hub"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

const sseKeepAlive = 25 * time.Second

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /rpc/stream
func RPCStreamHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/rpc/stream", func(w http.ResponseWriter, r *http.Request) {
			streamTopic(w, r, e.Hub, "rpc-log")
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Stream RPC log frames across every server",
			},
		})
}

// Path: /xray/stream
func XRayStreamHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/xray/stream", func(w http.ResponseWriter, r *http.Request) {
			streamTopic(w, r, e.Hub, "xray")
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Stream outgoing chat-turn X-Ray payloads",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// streamTopic relays one hub topic as an SSE response (§4.6 "SSE
// conventions"): an initial retry hint, data: <json> frames, and periodic
// comment keep-alives. go-server's httpresponse.NewTextStream frames named
// SSE events, not the bare data: frames this spec requires, so the edge
// writes directly against http.ResponseWriter/http.Flusher here.
func streamTopic(w http.ResponseWriter, r *http.Request, h *hub.Hub, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = httpresponse.Error(w, httpresponse.ErrInternalError)
		return
	}

	sub := h.Subscribe(topic)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 1500\n\n")
	flusher.Flush()

	ctx := r.Context()
	for {
		waitCtx, cancel := context.WithTimeout(ctx, sseKeepAlive)
		env, ok := sub.Next(waitCtx)
		cancel()
		if ok {
			writeSSE(w, flusher, env.Data)
			continue
		}
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
