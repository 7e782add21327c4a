package httpedge

import (
	"encoding/json"
	"net/http"

	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

type getPromptRequest struct {
	ServerID  string          `json:"serverId"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Path: /prompts/list
func PromptsListHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/prompts/list", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req listRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			page, err := e.Manager.ListPrompts(r.Context(), req.ServerID, req.Cursor)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), page)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "List a server's prompts",
			},
		})
}

// Path: /prompts/get
func PromptsGetHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/prompts/get", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req getPromptRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			items, err := e.Manager.GetPrompt(r.Context(), req.ServerID, req.Name, req.Arguments)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), items)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Render a prompt from a server",
			},
		})
}
