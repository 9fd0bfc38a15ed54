// Package session implements the gateway session manager: the state
// machine that drives a persistent websocket connection to the QQ bot
// gateway through handshake, steady-state dispatch, heartbeating, and
// reconnection with session resumption.
package session

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"

	"github.com/qqbotgo/gateway/handler"
	"github.com/qqbotgo/gateway/rest"
)

// Config configures a Manager.
type Config struct {
	// URL is the gateway websocket URL, obtained once by the host via
	// Client.GatewayURL before starting the manager. The manager dials
	// this same URL on every reconnect attempt; it does not re-fetch it
	// per the control flow described for startup.
	URL string

	// Client supplies the current "QQBot <token>" header value for
	// Identify/Resume and is handed to event handlers so they can
	// reply.
	Client *rest.Client

	// Handler receives decoded chat events.
	Handler handler.Handler

	// Intents is the bitmask sent with Identify. Defaults to 1<<30
	// (public messages) when zero.
	Intents uint32

	// HeartbeatACKTimeout bounds how long the manager waits for a
	// HeartbeatACK before reconnecting. Defaults to 7s.
	HeartbeatACKTimeout time.Duration

	// HandshakeTimeout bounds how long the manager waits for Hello
	// after dialing. Defaults to 10s.
	HandshakeTimeout time.Duration

	// BaseBackoff, MaxBackoff and LongPause tune the reconnect backoff.
	// Defaults: 1s, 5s, 30s.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	LongPause   time.Duration

	// MaxResumeRetries is the number of consecutive failures tolerated
	// before a LongPause is taken. Defaults to 3.
	MaxResumeRetries int
}

func (c *Config) setDefaults() {
	if c.Intents == 0 {
		c.Intents = 1 << 30
	}

	if c.HeartbeatACKTimeout == 0 {
		c.HeartbeatACKTimeout = 7 * time.Second
	}

	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}

	if c.BaseBackoff == 0 {
		c.BaseBackoff = time.Second
	}

	if c.MaxBackoff == 0 {
		c.MaxBackoff = 5 * time.Second
	}

	if c.LongPause == 0 {
		c.LongPause = 30 * time.Second
	}

	if c.MaxResumeRetries == 0 {
		c.MaxResumeRetries = 3
	}
}

// Manager maintains exactly one logical gateway session across
// possibly many physical websocket connections.
type Manager struct {
	cfg   Config
	state state

	stop   context.CancelFunc
	done   chan struct{}
}

// New constructs a Manager. The returned value must be started with
// Start before it does anything.
func New(cfg Config) *Manager {
	cfg.setDefaults()

	return &Manager{cfg: cfg}
}

// Start runs the reconnect loop until ctx is canceled or Stop is
// called. It blocks the calling goroutine; callers typically invoke
// it as `go manager.Start(ctx)`.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.stop = cancel
	m.done = make(chan struct{})
	defer close(m.done)

	resumeCount := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := m.runOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err == nil {
			resumeCount = 0

			continue
		}

		Logger.Warn().Err(err).Int(LogCtxAttempt, resumeCount).Msg("gateway connection attempt ended, reconnecting")

		if resumeCount >= m.cfg.MaxResumeRetries {
			resumeCount = 0

			if !sleepCtx(ctx, m.cfg.LongPause) {
				return nil
			}

			continue
		}

		jitter := 0.8 + rand.Float64()*0.4 //nolint:gosec
		delay := time.Duration(float64(m.cfg.BaseBackoff) * jitter * float64(resumeCount+1))

		if delay > m.cfg.MaxBackoff {
			delay = m.cfg.MaxBackoff
		}

		resumeCount++

		if !sleepCtx(ctx, delay) {
			return nil
		}
	}
}

// Stop signals the reconnect loop to exit after the current connection
// attempt closes. Idempotent; safe to call before Start.
func (m *Manager) Stop() {
	if m.stop != nil {
		m.stop()
	}
}

// sleepCtx sleeps for d or returns false early if ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runOnce dials, handshakes, and runs one websocket connection to
// completion. A nil return indicates a caller-initiated Stop or a
// peer-requested Opcode 7 Reconnect, after which the outer loop
// reconnects without backing off; any other return indicates a
// failure the outer loop should back off and retry.
func (m *Manager) runOnce(ctx context.Context) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.Dial(connCtx, m.cfg.URL, nil)
	if err != nil {
		return ErrConnectionFailed{Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	interval, err := m.handshake(connCtx, conn)
	if err != nil {
		return err
	}

	hb := &heartbeatController{
		interval:   interval,
		ackTimeout: m.cfg.HeartbeatACKTimeout,
		request:    make(chan struct{}),
		ack:        make(chan struct{}, 1),
		write:      m.writer(conn),
		state:      &m.state,
		sessionID:  m.currentSessionID(),
	}

	lst := &listener{
		conn:   conn,
		state:  &m.state,
		hb:     hb,
		client: m.cfg.Client,
		h:      m.cfg.Handler,
	}

	group, gctx := errgroup.WithContext(connCtx)
	group.Go(func() error { return hb.run(gctx) })
	group.Go(func() error { return lst.run(gctx) })

	err = group.Wait()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errReconnectRequested):
		return nil
	default:
		return err
	}
}

func (m *Manager) currentSessionID() string {
	sessionID, _, _ := m.state.Snapshot()

	return sessionID
}
