package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	kong "github.com/alecthomas/kong"
	otel "github.com/mutablelogic/go-client/pkg/otel"
	server "github.com/mutablelogic/go-server"
	logger "github.com/mutablelogic/go-server/pkg/logger"
	metric "go.opentelemetry.io/otel/metric"
	trace "go.opentelemetry.io/otel/trace"
	terminal "golang.org/x/term"

	version "github.com/MCPJam/inspector-sub007/pkg/version"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Globals holds the flags and runtime state shared by every command,
// grounded on the teacher's cmd/llm Globals.
type Globals struct {
	Debug   bool             `name:"debug" help:"Enable debug logging"`
	Verbose bool             `name:"verbose" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Print version and exit"`

	HTTP struct {
		Prefix  string        `name:"prefix" help:"HTTP path prefix" default:"/api"`
		Addr    string        `name:"addr" env:"INSPECTORD_ADDR" help:"HTTP listen address" default:"localhost:8090"`
		Timeout time.Duration `name:"timeout" help:"HTTP server read/write timeout" default:"15m"`
		Origin  string        `name:"origin" help:"Cross-origin protection (CSRF) origin" default:""`
	} `embed:"" prefix:"http."`

	OTel struct {
		Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" help:"OpenTelemetry endpoint" default:""`
		Header   string `env:"OTEL_EXPORTER_OTLP_HEADERS" help:"OpenTelemetry collector headers"`
		Name     string `env:"OTEL_SERVICE_NAME" help:"OpenTelemetry service name" default:"${EXECUTABLE_NAME}"`
	} `embed:"" prefix:"otel."`

	ctx      context.Context
	cancel   context.CancelFunc
	tracer   trace.Tracer
	meter    metric.Meter
	logger   server.Logger
	execName string
}

type CLI struct {
	Globals
	ServerCommands
}

///////////////////////////////////////////////////////////////////////////////
// MAIN

func main() {
	execName, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(-1)
	}

	cli := new(CLI)
	ctx := kong.Parse(cli,
		kong.Name("inspectord"),
		kong.Description("MCP client manager daemon"),
		kong.Vars{
			"version":         string(version.JSON(execName)),
			"EXECUTABLE_NAME": execName,
		},
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	cli.Globals.execName = execName

	os.Exit(run(ctx, &cli.Globals))
}

func run(ctx *kong.Context, globals *Globals) int {
	parent := context.Background()

	if isTerminal(os.Stderr) {
		globals.logger = logger.New(os.Stderr, logger.Term, globals.Debug)
	} else {
		globals.logger = logger.New(os.Stderr, logger.JSON, globals.Debug)
	}

	globals.ctx, globals.cancel = signal.NotifyContext(parent, os.Interrupt)
	defer globals.cancel()

	if globals.OTel.Endpoint != "" {
		provider, err := otel.NewProvider(globals.OTel.Endpoint, globals.OTel.Header, globals.OTel.Name)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return -2
		}
		defer provider.Shutdown(context.Background())
		globals.tracer = provider.Tracer(globals.OTel.Name)
		globals.meter = provider.Meter(globals.OTel.Name)
	}

	if err := ctx.Run(globals); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return -1
	}
	return 0
}

func isTerminal(w io.Writer) bool {
	if fd, ok := w.(*os.File); ok {
		return terminal.IsTerminal(int(fd.Fd()))
	}
	return false
}
