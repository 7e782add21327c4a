package httpedge

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	chat "github.com/MCPJam/inspector-sub007/pkg/chat"
	"github.com/MCPJam/inspector-sub007/pkg/chat/provider"
	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /chat
func ChatHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/chat", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}

			var req schema.ChatRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}

			driver, err := newDriver(req)
			if err != nil {
				_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With(err))
				return
			}

			switch acceptType(r) {
			case acceptStream:
				chatStream(w, r, e, req, driver)
			case acceptJSON:
				chatJSON(w, r, e, req, driver)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusNotAcceptable))
			}
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Run one chat turn across the selected MCP servers",
			},
		})
}

type chatApproveRequest struct {
	TurnID     string                  `json:"turnId"`
	ToolCallID string                  `json:"toolCallId"`
	Decision   schema.ApprovalDecision `json:"decision"`
}

// Path: /chat/approve
func ChatApproveHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/chat/approve", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req chatApproveRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			if err := e.Chat.Approve(req.TurnID, req.ToolCallID, req.Decision); err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Resolve an open tool-approval request for a chat turn",
			},
		})
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// chatJSON runs the turn to completion and returns the accumulated events as
// one JSON array, grounded on the teacher's chatJSON which returns one
// complete schema.ChatResponse rather than a stream.
func chatJSON(w http.ResponseWriter, r *http.Request, e *Edge, req schema.ChatRequest, driver chat.Driver) {
	sink := make(chan schema.ChatEvent, 64)
	var events []schema.ChatEvent
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sink {
			events = append(events, ev)
		}
	}()

	turnID := uuid.NewString()
	err := e.Chat.Run(r.Context(), turnID, req, driver, sink)
	close(sink)
	<-done

	if err != nil {
		_ = httpresponse.Error(w, httpErr(err))
		return
	}
	_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), events)
}

// chatStream runs the turn and relays each event as a bare data: frame (§4.6
// SSE conventions), ending with the data: [DONE] sentinel. go-server's
// httpresponse.NewTextStream frames named SSE events, which this spec's wire
// format doesn't use, so this writes directly against
// http.ResponseWriter/http.Flusher the same way streamTopic does.
func chatStream(w http.ResponseWriter, r *http.Request, e *Edge, req schema.ChatRequest, driver chat.Driver) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		_ = httpresponse.Error(w, httpresponse.ErrInternalError)
		return
	}

	sink := make(chan schema.ChatEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range sink {
			writeSSE(w, flusher, ev)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 1500\n\n")
	flusher.Flush()

	turnID := uuid.NewString()
	err := e.Chat.Run(r.Context(), turnID, req, driver, sink)
	close(sink)
	<-done

	if err != nil {
		writeSSE(w, flusher, schema.ChatEvent{Kind: schema.EventErrorKind, Error: err.Error()})
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// newDriver builds the abstract chat.Driver this turn streams against. Only
// the Anthropic adapter is wired so far (§9 Open Question: provider
// selection); an unknown provider is a client error, not a server error.
func newDriver(req schema.ChatRequest) (chat.Driver, error) {
	if req.APIKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	switch req.Provider {
	case "", "anthropic":
		return provider.NewAnthropic(req.APIKey)
	default:
		return nil, fmt.Errorf("unsupported provider %q", req.Provider)
	}
}

///////////////////////////////////////////////////////////////////////////////
// ACCEPT NEGOTIATION

// acceptKind classifies the negotiated response format, grounded on the
// teacher's httphandler.acceptType/acceptKind.
type acceptKind int

const (
	acceptJSON acceptKind = iota
	acceptStream
	acceptUnsupported
)

func acceptType(r *http.Request) acceptKind {
	header := r.Header.Get("Accept")
	if header == "" {
		return acceptJSON
	}
	for _, part := range strings.Split(header, ",") {
		mt := strings.TrimSpace(part)
		if idx := strings.IndexByte(mt, ';'); idx >= 0 {
			mt = strings.TrimSpace(mt[:idx])
		}
		switch mt {
		case "text/event-stream":
			return acceptStream
		case "application/json", "*/*":
			return acceptJSON
		}
	}
	return acceptUnsupported
}
