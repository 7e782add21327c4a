package httpedge

import (
	"net/http"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

// Path: /elicitation/respond
func ElicitationRespondHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/elicitation/respond", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req schema.ElicitationAnswer
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			if err := e.Manager.RespondToElicitation(r.Context(), req); err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			w.WriteHeader(http.StatusNoContent)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Resolve an open elicitation request",
			},
		})
}

// Path: /elicitation/stream
func ElicitationStreamHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/elicitation/stream", func(w http.ResponseWriter, r *http.Request) {
			streamTopic(w, r, e.Hub, "elicitation")
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Stream elicitation-open and elicitation-closed events",
			},
		})
}
