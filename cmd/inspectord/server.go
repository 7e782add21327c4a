package main

import (
	otel "github.com/mutablelogic/go-client/pkg/otel"
	server "github.com/mutablelogic/go-server"
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"

	core "github.com/MCPJam/inspector-sub007"
	chat "github.com/MCPJam/inspector-sub007/pkg/chat"
	httpedge "github.com/MCPJam/inspector-sub007/pkg/httpedge"
	hub "github.com/MCPJam/inspector-sub007/pkg/hub"
	manager "github.com/MCPJam/inspector-sub007/pkg/manager"
	oauthproxy "github.com/MCPJam/inspector-sub007/pkg/oauthproxy"
	version "github.com/MCPJam/inspector-sub007/pkg/version"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	RunServer RunServer `cmd:"" name:"run" help:"Run the MCP client manager daemon"`
}

type RunServer struct{}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

// Run wires the hub, manager, chat engine, OAuth proxy and HTTP edge (§3, §4)
// and blocks until the process receives an interrupt, grounded on the
// teacher's cmd/llm RunServer.Run/Serve split.
func (cmd *RunServer) Run(g *Globals) error {
	cfg := core.ConfigFromEnv()

	h := hub.New()
	mgr := manager.New(cfg, h, nil, g.tracer, g.meter)
	defer mgr.Close()

	engine := chat.New(mgr, cfg, nil, g.tracer)
	proxy := oauthproxy.New(cfg)

	edge := &httpedge.Edge{
		Manager: mgr,
		Chat:    engine,
		Hub:     h,
		OAuth:   proxy,
		Cfg:     cfg,
	}

	return cmd.serve(g, edge, version.Version())
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (cmd *RunServer) serve(g *Globals, edge *httpedge.Edge, versionTag string) error {
	middleware := []httprouter.HTTPMiddlewareFunc{}
	if mw, ok := g.logger.(server.HTTPMiddleware); ok {
		middleware = append(middleware, mw.WrapFunc)
	}
	if g.tracer != nil {
		middleware = append(middleware, otel.HTTPHandlerFunc(g.tracer))
	}

	router, err := httprouter.NewRouter(g.ctx, g.HTTP.Prefix, g.HTTP.Origin, "MCP Client Manager", versionTag, middleware...)
	if err != nil {
		return err
	}
	if err := httpedge.RegisterHandlers(edge, router, true); err != nil {
		return err
	}

	httpSrv, err := httpserver.New(g.HTTP.Addr, router, nil)
	if err != nil {
		return err
	}

	g.logger.Printf(g.ctx, "inspectord@%s started on %s", versionTag, g.HTTP.Addr)
	if err := httpSrv.Run(g.ctx); err != nil {
		return err
	}
	g.logger.Printf(g.ctx, "inspectord@%s stopped", versionTag)
	return nil
}
