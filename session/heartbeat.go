package session

import (
	"context"
	"time"

	"github.com/qqbotgo/gateway/envelope"
)

// heartbeatController owns the heartbeat ticker and ACK-timeout timer
// for one connection attempt. It runs on its own goroutine (the "beat"
// half of the steady-state loop described in the session manager's
// design) so that a blocking websocket read in listen never delays a
// heartbeat, and a heartbeat send never drops an inbound frame.
type heartbeatController struct {
	interval   time.Duration
	ackTimeout time.Duration

	// request is signalled by listen() when the peer sends an Opcode 1
	// Heartbeat requesting an immediate reply.
	request chan struct{}

	// ack is signalled by listen() when a HeartbeatACK (Opcode 11) arrives.
	ack chan struct{}

	write func(ctx context.Context, hb *envelope.Heartbeat) error
	state *state

	sessionID string
}

// run drives the heartbeat loop until ctx is canceled, the peer stops
// acknowledging heartbeats, or a write fails.
func (h *heartbeatController) run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// ackTimer is disarmed until the first heartbeat is actually sent.
	ackTimer := time.NewTimer(h.ackTimeout)
	if !ackTimer.Stop() {
		<-ackTimer.C
	}
	defer ackTimer.Stop()

	// armed reports whether ackTimer is counting down for a heartbeat
	// that has not been acknowledged yet.
	armed := false

	send := func() error {
		_, lastSeq, hasSeq := h.state.Snapshot()

		var seq *uint64
		if hasSeq {
			seq = &lastSeq
		}

		if err := h.write(ctx, &envelope.Heartbeat{Data: seq}); err != nil {
			return ErrSendFailed{Context: "Heartbeat", Err: err}
		}

		// A heartbeat sent while an earlier one is still unacknowledged
		// does not push the pending deadline back.
		if !armed {
			ackTimer.Reset(h.ackTimeout)
			armed = true
		}

		return nil
	}

	// The first tick fires one full interval after the loop starts, not
	// immediately; missed ticks are dropped rather than coalesced.
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if err := send(); err != nil {
				return err
			}

		case <-h.request:
			if err := send(); err != nil {
				return err
			}

			ticker.Reset(h.interval)

		case <-h.ack:
			// A HeartbeatACK disarms the timeout until the next heartbeat
			// is sent; it does not rearm it.
			if !ackTimer.Stop() {
				select {
				case <-ackTimer.C:
				default:
				}
			}

			armed = false

		case <-ackTimer.C:
			LogSession(Logger.Warn(), h.sessionID).Msg("heartbeat ACK timed out")

			return ErrHeartbeatTimeout{SessionID: h.sessionID}
		}
	}
}
