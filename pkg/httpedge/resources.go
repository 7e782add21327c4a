package httpedge

import (
	"net/http"

	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

type readResourceRequest struct {
	ServerID string `json:"serverId"`
	URI      string `json:"uri"`
}

// Path: /resources/list
func ResourcesListHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/resources/list", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req listRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			page, err := e.Manager.ListResources(r.Context(), req.ServerID, req.Cursor)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), page)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "List a server's resources",
			},
		})
}

// Path: /resources/read
func ResourcesReadHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/resources/read", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req readResourceRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			items, err := e.Manager.ReadResource(r.Context(), req.ServerID, req.URI)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), items)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Read a resource from a server",
			},
		})
}
