package webhook

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/qqbotgo/gateway/envelope"
	"github.com/qqbotgo/gateway/handler"
	"github.com/qqbotgo/gateway/rest"
)

// Server is the HTTP intake endpoint for webhook-mode event delivery.
// It is routed with gorilla/mux so a health-check route can sit
// alongside the primary one without restructuring.
type Server struct {
	validator *Validator
	handler   handler.Handler
	client    *rest.Client
	router    *mux.Router
}

// NewServer constructs a Server. clientSecret derives the Ed25519
// validator; h receives decoded chat events; client is handed to h so
// it can reply.
func NewServer(clientSecret string, h handler.Handler, client *rest.Client) *Server {
	s := &Server{
		validator: NewValidator(clientSecret),
		handler:   h,
		client:    client,
		router:    mux.NewRouter(),
	}

	s.router.HandleFunc("/", s.handleEvent).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var env envelope.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")

		return
	}

	switch env.Op {
	case envelope.FlagGatewayOpcodeWebhookValidate:
		s.handleValidate(w, env.D)

	case envelope.FlagGatewayOpcodeDispatch:
		s.handleDispatch(env)

		writeJSON(w, http.StatusOK, envelope.CallbackACK{Op: envelope.FlagGatewayOpcodeCallbackACK})

	default:
		writeError(w, http.StatusBadRequest, "unsupported opcode")
	}
}

func (s *Server) handleValidate(w http.ResponseWriter, data json.RawMessage) {
	var req envelope.ValidationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed validation payload")

		return
	}

	writeJSON(w, http.StatusOK, s.validator.Respond(req))
}

// handleDispatch decodes a known event type and hands it to the
// handler on a detached goroutine, mirroring the gateway session
// manager's dispatch routing for the subset of events webhook delivery
// carries (webhook mode has no persistent session, so there is no
// session state to update here).
func (s *Server) handleDispatch(env envelope.Envelope) {
	if env.T == nil {
		return
	}

	switch *env.T {
	case envelope.FlagGatewayEventNameGroupAtMessageCreate:
		msg := new(envelope.GroupMessage)
		if err := json.Unmarshal(env.D, msg); err != nil {
			logger.Error().Err(err).Msg("failed to decode GROUP_AT_MESSAGE_CREATE webhook payload")

			return
		}

		go invoke(func(ctx context.Context) { s.handler.OnGroupAtMessageCreate(ctx, msg, s.client) })

	case envelope.FlagGatewayEventNameC2CMessageCreate:
		msg := new(envelope.C2CMessage)
		if err := json.Unmarshal(env.D, msg); err != nil {
			logger.Error().Err(err).Msg("failed to decode C2C_MESSAGE_CREATE webhook payload")

			return
		}

		go invoke(func(ctx context.Context) { s.handler.OnC2CMessageCreate(ctx, msg, s.client) })

	default:
		logger.Debug().Str("event", *env.T).Msg("ignoring unrecognized webhook dispatch event")
	}
}

func invoke(fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("recovered from panicking event handler")
		}
	}()

	fn(context.Background())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: message})
}

var logger = zerolog.Nop()

// SetLogger overrides the package logger used by the intake server.
func SetLogger(l zerolog.Logger) { logger = l }
