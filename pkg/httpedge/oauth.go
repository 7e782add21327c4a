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

// Path: /oauth/proxy
func OAuthProxyHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/oauth/proxy", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req schema.OAuthProxyRequest
			if err := httprequest.Read(r, &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			resp, err := e.OAuth.Forward(r.Context(), req)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), resp)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Forward an OAuth token/registration request to a target URL",
			},
		})
}

type oauthMetadataRequest struct {
	URL string `json:"url"`
}

// Path: /oauth/metadata
func OAuthMetadataHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/oauth/metadata", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			var req oauthMetadataRequest
			if err := httprequest.Query(r.URL.Query(), &req); err != nil {
				_ = httpresponse.Error(w, err)
				return
			}
			if req.URL == "" {
				_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With("missing url query parameter"))
				return
			}
			doc, err := e.OAuth.FetchMetadata(r.Context(), req.URL)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), doc)
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Fetch a target's OAuth metadata document",
			},
		})
}
