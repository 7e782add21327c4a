package core

import (
	"os"
	"strconv"
	"strings"
	"time"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// Config is the process-wide configuration read once at startup and passed
// explicitly into the manager, hub, chat engine and HTTP edge constructors.
// There is no package-level mutable config; callers own the value.
type Config struct {
	// WebMode restricts MCP server URLs to https:// and disables stdio
	// transports, per §6.
	WebMode bool

	// CORSOrigins is the allowlist parsed from CORS_ORIGINS.
	CORSOrigins []string

	// ToolTimeout is the ambient deadline for tool operations (default 30s).
	ToolTimeout time.Duration

	// PingTimeout is the ambient deadline for ping (default 5s).
	PingTimeout time.Duration

	// ChatTimeout is the ambient deadline for a full chat turn (default 300s).
	ChatTimeout time.Duration

	// ElicitationTimeout bounds how long an open elicitation waits for a
	// response before expiring (default 120s).
	ElicitationTimeout time.Duration

	// ReconnectBaseDelay / ReconnectMaxDelay / ReconnectMaxAttempts configure
	// the manager's exponential backoff policy for session reconnection.
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	ReconnectMaxAttempts int
}

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// ConfigFromEnv populates a Config from the environment variables named in
// §6: WEB_MODE and CORS_ORIGINS, plus defaults for the ambient deadlines.
func ConfigFromEnv() Config {
	return Config{
		WebMode:              envBool("WEB_MODE"),
		CORSOrigins:          envList("CORS_ORIGINS"),
		ToolTimeout:          30 * time.Second,
		PingTimeout:          5 * time.Second,
		ChatTimeout:          300 * time.Second,
		ElicitationTimeout:   120 * time.Second,
		ReconnectBaseDelay:   500 * time.Millisecond,
		ReconnectMaxDelay:    30 * time.Second,
		ReconnectMaxAttempts: 5,
	}
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func envList(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
