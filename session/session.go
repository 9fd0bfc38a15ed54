package session

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"nhooyr.io/websocket"

	"github.com/qqbotgo/gateway/envelope"
	"github.com/qqbotgo/gateway/internal/socket"
)

// handshake waits for Hello, then sends either Identify or Resume
// depending on whether enough session state is present to resume, and
// returns the negotiated heartbeat interval.
func (m *Manager) handshake(ctx context.Context, conn *websocket.Conn) (time.Duration, error) {
	hctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	hello, err := m.awaitHello(hctx, conn)
	if err != nil {
		return 0, err
	}

	if hello.HeartbeatInterval == 0 {
		return 0, ErrMissingHeartbeatInterval{}
	}

	if m.state.CanResume() {
		if err := m.sendResume(ctx, conn); err != nil {
			return 0, err
		}
	} else if err := m.sendIdentify(ctx, conn); err != nil {
		return 0, err
	}

	return time.Duration(hello.HeartbeatInterval) * time.Millisecond, nil
}

// awaitHello blocks until the gateway sends Opcode 10 Hello, discarding
// (and logging) anything else received first.
func (m *Manager) awaitHello(ctx context.Context, conn *websocket.Conn) (*envelope.Hello, error) {
	for {
		env := envelope.Acquire()
		if err := socket.Read(ctx, conn, env); err != nil {
			envelope.Release(env)

			return nil, ErrConnectionFailed{Err: fmt.Errorf("waiting for hello: %w", err)}
		}

		if env.Op != envelope.FlagGatewayOpcodeHello {
			LogPayload(Logger.Debug(), uint8(env.Op), env.D).Msg("discarding frame received before Hello")
			envelope.Release(env)

			continue
		}

		hello := new(envelope.Hello)
		if len(env.D) > 0 {
			if err := json.Unmarshal(env.D, hello); err != nil {
				envelope.Release(env)

				// A heartbeat_interval that is not a non-negative integer
				// is reported the same way as a missing one.
				return nil, ErrMissingHeartbeatInterval{}
			}
		}

		envelope.Release(env)

		return hello, nil
	}
}

func (m *Manager) sendIdentify(ctx context.Context, conn *websocket.Conn) error {
	identify := envelope.Identify{
		Token:   m.cfg.Client.TokenHeader(),
		Intents: m.cfg.Intents,
		Shard:   [2]int{0, 1},
	}

	return m.writeCommand(ctx, conn, envelope.FlagGatewayOpcodeIdentify, identify)
}

func (m *Manager) sendResume(ctx context.Context, conn *websocket.Conn) error {
	sessionID, lastSeq, _ := m.state.Snapshot()

	resume := envelope.Resume{
		Token:     m.cfg.Client.TokenHeader(),
		SessionID: sessionID,
		Seq:       lastSeq,
	}

	return m.writeCommand(ctx, conn, envelope.FlagGatewayOpcodeResume, resume)
}

// writeCommand marshals d and writes it as an Envelope with the given
// opcode.
func (m *Manager) writeCommand(ctx context.Context, conn *websocket.Conn, op envelope.Opcode, d any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return ErrSerialization{Context: fmt.Sprintf("opcode %d command", op), Err: err}
	}

	if err := socket.Write(ctx, conn, envelope.Envelope{Op: op, D: data}); err != nil {
		return ErrSendFailed{Context: fmt.Sprintf("opcode %d command", op), Err: err}
	}

	return nil
}

// writer returns a function that writes a Heartbeat frame to conn,
// bound for use by heartbeatController without exposing the websocket
// connection to it.
func (m *Manager) writer(conn *websocket.Conn) func(ctx context.Context, hb *envelope.Heartbeat) error {
	return func(ctx context.Context, hb *envelope.Heartbeat) error {
		return socket.Write(ctx, conn, envelope.Envelope{Op: envelope.FlagGatewayOpcodeHeartbeat, D: mustMarshalHeartbeat(hb)})
	}
}

// mustMarshalHeartbeat marshals a Heartbeat payload. Heartbeat has no
// fields that can fail to marshal (a nilable pointer and nothing
// else), so a marshal error here would indicate a programming error.
func mustMarshalHeartbeat(hb *envelope.Heartbeat) json.RawMessage {
	data, err := json.Marshal(hb)
	if err != nil {
		panic(fmt.Sprintf("heartbeat payload failed to marshal: %v", err))
	}

	return data
}
