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

type listRequest struct {
	ServerID string `json:"serverId"`
	Cursor   string `json:"cursor,omitempty"`
}

type executeToolRequest struct {
	ServerID   string          `json:"serverId"`
	ToolName   string          `json:"toolName"`
	Parameters json.RawMessage `json:"parameters"`
}

// Path: /tools/list
func ToolsListHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/tools/list", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req listRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			page, err := e.Manager.ListTools(r.Context(), req.ServerID, req.Cursor)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), page)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "List a server's tools",
			},
		})
}

// Path: /tools/execute
func ToolsExecuteHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/tools/execute", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req executeToolRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			result, err := e.Manager.CallTool(r.Context(), req.ServerID, req.ToolName, req.Parameters, nil)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), result)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Execute a tool on a server",
			},
		})
}
