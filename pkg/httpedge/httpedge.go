// Package httpedge implements the HTTP edge (§4.6): one route per MCP
// client manager / chat engine / OAuth proxy operation, registered the way
// the teacher's pkg/httphandler does it — one XxxHandler(...) function per
// path returning (path, http.HandlerFunc, *openapi.PathItem), aggregated by
// RegisterHandlers using errors.Join so one bad registration doesn't hide
// the rest.
package httpedge

import (
	"errors"
	"net/http"

	core "github.com/MCPJam/inspector-sub007"
	chat "github.com/MCPJam/inspector-sub007/pkg/chat"
	hub "github.com/MCPJam/inspector-sub007/pkg/hub"
	manager "github.com/MCPJam/inspector-sub007/pkg/manager"
	oauthproxy "github.com/MCPJam/inspector-sub007/pkg/oauthproxy"
	server "github.com/mutablelogic/go-server"
	httpresponse "github.com/mutablelogic/go-server/pkg/httpresponse"
	openapi "github.com/mutablelogic/go-server/pkg/openapi/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Router mirrors the teacher's httphandler.Router: the subset of
// server.HTTPRouter needed to register one handler.
type Router interface {
	RegisterFunc(path string, handler http.HandlerFunc, middleware bool, spec *openapi.PathItem) error
}

// Edge bundles the dependencies every route handler needs.
type Edge struct {
	Manager *manager.Manager
	Chat    *chat.Engine
	Hub     *hub.Hub
	OAuth   *oauthproxy.Proxy
	Cfg     core.Config
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// RegisterHandlers registers every route in §4.6's request-route table.
func RegisterHandlers(e *Edge, router server.HTTPRouter, middleware bool) error {
	var result error
	register := func(path string, handler http.HandlerFunc, spec *openapi.PathItem) {
		result = errors.Join(result, router.(Router).RegisterFunc(path, handler, middleware, spec))
	}

	register(ServersHandler(e))
	register(ServerHandler(e))
	register(ServerReconnectHandler(e))
	register(ToolsListHandler(e))
	register(ToolsExecuteHandler(e))
	register(ResourcesListHandler(e))
	register(ResourcesReadHandler(e))
	register(PromptsListHandler(e))
	register(PromptsGetHandler(e))
	register(ElicitationRespondHandler(e))
	register(ElicitationStreamHandler(e))
	register(ChatHandler(e))
	register(ChatApproveHandler(e))
	register(RPCStreamHandler(e))
	register(XRayStreamHandler(e))
	register(OAuthProxyHandler(e))
	register(OAuthMetadataHandler(e))

	return result
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// httpErr maps the core.Err taxonomy onto httpresponse errors (§7), the same
// shape as the teacher's httphandler.httpErr.
func httpErr(err error) error {
	var coreErr core.Err
	if !errors.As(err, &coreErr) {
		return err
	}
	switch coreErr {
	case core.ErrNotFound:
		return httpresponse.ErrNotFound.With(err)
	case core.ErrBadParameter, core.ErrValidation:
		return httpresponse.ErrBadRequest.With(err)
	case core.ErrConflict:
		return httpresponse.ErrConflict.With(err)
	case core.ErrNotImplemented, core.ErrFeatureNotSupported:
		return httpresponse.ErrNotImplemented.With(err)
	case core.ErrUnauthorized:
		return httpresponse.Err(http.StatusUnauthorized).With(err)
	case core.ErrForbidden:
		return httpresponse.Err(http.StatusForbidden).With(err)
	case core.ErrServerUnreachable, core.ErrTimeout:
		return httpresponse.Err(http.StatusGatewayTimeout).With(err)
	default:
		return httpresponse.ErrInternalError.With(err)
	}
}
