package session

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"nhooyr.io/websocket"

	"github.com/qqbotgo/gateway/envelope"
	"github.com/qqbotgo/gateway/handler"
	"github.com/qqbotgo/gateway/internal/socket"
	"github.com/qqbotgo/gateway/rest"
)

// errReconnectRequested is returned by listener.run when the peer sent
// Opcode 7 Reconnect. Session state is preserved; the next attempt
// resumes.
var errReconnectRequested = errors.New("gateway requested reconnect")

// listener owns the blocking read side of one connection attempt. It
// runs on its own goroutine because nhooyr.io/websocket's blocking
// Read cannot itself participate in a select alongside the heartbeat
// ticker; listener instead notifies heartbeatController over channels.
type listener struct {
	conn   *websocket.Conn
	state  *state
	hb     *heartbeatController
	client *rest.Client
	h      handler.Handler

	sessionID string
}

func (l *listener) run(ctx context.Context) error {
	for {
		env := envelope.Acquire()

		if err := socket.Read(ctx, l.conn, env); err != nil {
			envelope.Release(env)

			select {
			case <-ctx.Done():
				return nil
			default:
			}

			var decodeErr socket.DecodeError
			if errors.As(err, &decodeErr) {
				Logger.Warn().Err(err).Msg("discarding malformed gateway frame")

				continue
			}

			closeErr := new(websocket.CloseError)
			if errors.As(err, closeErr) {
				return ErrConnectionClosed{SessionID: l.sessionID, Err: err}
			}

			return ErrConnectionFailed{Err: err}
		}

		err := l.onEnvelope(ctx, env)
		envelope.Release(env)

		if err != nil {
			return err
		}
	}
}

func (l *listener) onEnvelope(ctx context.Context, env *envelope.Envelope) error {
	if env.S != nil {
		l.state.ObserveSeq(*env.S)
	}

	switch env.Op {
	case envelope.FlagGatewayOpcodeDispatch:
		if env.T == nil {
			return nil
		}

		return l.dispatch(*env.T, env.D)

	case envelope.FlagGatewayOpcodeHeartbeat:
		select {
		case l.hb.request <- struct{}{}:
		case <-ctx.Done():
		}

	case envelope.FlagGatewayOpcodeHeartbeatACK:
		select {
		case l.hb.ack <- struct{}{}:
		case <-ctx.Done():
		}

	case envelope.FlagGatewayOpcodeReconnect:
		LogSession(Logger.Info(), l.sessionID).Msg("gateway sent Opcode 7 Reconnect")

		return errReconnectRequested

	case envelope.FlagGatewayOpcodeInvalidSession:
		LogSession(Logger.Warn(), l.sessionID).Msg("gateway sent Opcode 9 InvalidSession")

		l.state.Invalidate()

		return ErrInvalidSession{SessionID: l.sessionID}

	case envelope.FlagGatewayOpcodeHello:
		LogSession(Logger.Debug(), l.sessionID).Msg("unexpected Hello in steady state, ignoring")

	default:
		LogPayload(LogSession(Logger.Debug(), l.sessionID), uint8(env.Op), env.D).Msg("ignoring unrecognized opcode")
	}

	return nil
}

// dispatch decodes and routes a single Opcode 0 Dispatch event. Known
// chat events are handed to the user's handler on a detached goroutine
// so that a slow handler never stalls the read loop or the heartbeat
// cadence.
func (l *listener) dispatch(t string, data json.RawMessage) error {
	switch t {
	case envelope.FlagGatewayEventNameReady:
		ready := new(envelope.ReadyPayload)
		if err := json.Unmarshal(data, ready); err != nil {
			Logger.Error().Err(err).Msg("failed to decode READY payload")

			return nil
		}

		l.state.SetReady(ready.SessionID)
		l.sessionID = ready.SessionID

		LogSession(Logger.Info(), ready.SessionID).Str("username", ready.User.Username).Msg("session ready")

		go l.invoke(func(c context.Context) { l.h.OnReady(c, ready) })

	case envelope.FlagGatewayEventNameResumed:
		LogSession(Logger.Info(), l.sessionID).Msg("session resumed")

	case envelope.FlagGatewayEventNameGroupAtMessageCreate:
		msg := new(envelope.GroupMessage)
		if err := json.Unmarshal(data, msg); err != nil {
			Logger.Error().Err(err).Msg("failed to decode GROUP_AT_MESSAGE_CREATE payload")

			return nil
		}

		go l.invoke(func(c context.Context) { l.h.OnGroupAtMessageCreate(c, msg, l.client) })

	case envelope.FlagGatewayEventNameC2CMessageCreate:
		msg := new(envelope.C2CMessage)
		if err := json.Unmarshal(data, msg); err != nil {
			Logger.Error().Err(err).Msg("failed to decode C2C_MESSAGE_CREATE payload")

			return nil
		}

		go l.invoke(func(c context.Context) { l.h.OnC2CMessageCreate(c, msg, l.client) })

	default:
		Logger.Debug().Str(LogCtxEvent, t).Msg("ignoring unrecognized dispatch event")
	}

	return nil
}

// invoke runs a handler callback guarded by a recover so a misbehaving
// handler cannot take down the host process.
func (l *listener) invoke(fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error().Interface("panic", r).Msg("recovered from panicking event handler")
		}
	}()

	fn(context.Background())
}
