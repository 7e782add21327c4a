package httpedge

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	schema "github.com/MCPJam/inspector-sub007/pkg/schema"
	idtypes "github.com/MCPJam/inspector-sub007/pkg/types"
	httprequest "github.com/mutablelogic/go-server/pkg/httprequest"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
	types "github.com/mutablelogic/go-server/pkg/types"
)

///////////////////////////////////////////////////////////////////////////////
// HANDLER FUNCTIONS

type addServerRequest struct {
	ID     string              `json:"id,omitempty"`
	Config schema.ServerConfig `json:"config"`
}

// Path: /servers
func ServersHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/servers", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), e.Manager.ListServers())
			case http.MethodPost:
				var req addServerRequest
				if err := httprequest.Read(r, &req); err != nil {
					_ = httpresponse.Error(w, err)
					return
				}
				id := req.ID
				if id == "" {
					id = uuid.NewString()
				} else if !idtypes.IsIdentifier(id) {
					_ = httpresponse.Error(w, httpresponse.ErrBadRequest.With(fmt.Sprintf("server id %q must be a valid identifier", id)))
					return
				}
				rec, err := e.Manager.AddServer(r.Context(), id, id, req.Config)
				if err != nil {
					_ = httpresponse.Error(w, httpErr(err))
					return
				}
				if _, err := e.Manager.Connect(r.Context(), id); err != nil {
					_ = httpresponse.Error(w, httpErr(err))
					return
				}
				_ = httpresponse.JSON(w, http.StatusCreated, httprequest.Indent(r), rec)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "List configured servers",
			},
			Post: &openapi.Operation{
				Description: "Add a server and begin connecting",
			},
		})
}

// Path: /servers/{id}
func ServerHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/servers/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := r.PathValue("id")
			switch r.Method {
			case http.MethodGet:
				rec, err := e.Manager.GetServer(id)
				if err != nil {
					_ = httpresponse.Error(w, httpErr(err))
					return
				}
				_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), rec)
			case http.MethodDelete:
				if _, err := e.Manager.GetServer(id); err != nil {
					_ = httpresponse.Error(w, httpErr(err))
					return
				}
				if err := e.Manager.RemoveServer(r.Context(), id); err != nil {
					_ = httpresponse.Error(w, httpErr(err))
					return
				}
				w.WriteHeader(http.StatusNoContent)
			default:
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
			}
		}, types.Ptr(openapi.PathItem{
			Get: &openapi.Operation{
				Description: "Get a server's current record",
			},
			Delete: &openapi.Operation{
				Description: "Disconnect and remove a server",
			},
		})
}

// Path: /servers/{id}/reconnect
func ServerReconnectHandler(e *Edge) (string, http.HandlerFunc, *openapi.PathItem) {
	return "/servers/{id}/reconnect", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				_ = httpresponse.Error(w, httpresponse.Err(http.StatusMethodNotAllowed), r.Method)
				return
			}
			id := r.PathValue("id")
			rec, err := e.Manager.Connect(r.Context(), id)
			if err != nil {
				_ = httpresponse.Error(w, httpErr(err))
				return
			}
			_ = httpresponse.JSON(w, http.StatusOK, httprequest.Indent(r), rec)
		}, types.Ptr(openapi.PathItem{
			Post: &openapi.Operation{
				Description: "Force a reconnect attempt for a server",
			},
		})
}
