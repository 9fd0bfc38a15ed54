package rest

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Logger is the package-level structured logger for REST calls.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "rest").Logger()

// Logger Contexts.
const (
	// LogCtxCorrelation represents the log key for a request correlation ID.
	LogCtxCorrelation = "xid"

	// LogCtxEndpoint represents the log key for an outbound HTTP endpoint.
	LogCtxEndpoint = "endpoint"
)
