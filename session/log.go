package session

import (
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Logger is the package-level structured logger used throughout the
// gateway session manager.
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Logger Contexts.
const (
	// LogCtxSession represents the log key for a gateway session ID.
	LogCtxSession = "session"

	// LogCtxCorrelation represents the log key for a correlation ID.
	LogCtxCorrelation = "xid"

	// LogCtxPayload represents the log key for a gateway payload.
	LogCtxPayload = "payload"

	// LogCtxPayloadOpcode represents the log key for a gateway payload opcode.
	LogCtxPayloadOpcode = "opcode"

	// LogCtxPayloadData represents the log key for gateway payload data.
	LogCtxPayloadData = "data"

	// LogCtxEvent represents the log key for a dispatched event.
	LogCtxEvent = "event"

	// LogCtxAttempt represents the log key for a reconnect attempt counter.
	LogCtxAttempt = "attempt"
)

// LogSession logs an event scoped to a gateway session.
func LogSession(log *zerolog.Event, sessionID string) *zerolog.Event {
	return log.Str(LogCtxSession, sessionID)
}

// LogPayload logs an inbound or outbound gateway payload (typically
// chained from LogSession).
func LogPayload(log *zerolog.Event, op uint8, data json.RawMessage) *zerolog.Event {
	return log.Dict(LogCtxPayload, zerolog.Dict().
		Uint8(LogCtxPayloadOpcode, op).
		RawJSON(LogCtxPayloadData, data),
	)
}
