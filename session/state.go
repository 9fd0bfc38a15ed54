package session

import "sync"

// state holds the session_id and last_seq a gateway session needs to
// resume across reconnects. It is the only piece of state that must
// survive the replacement of one websocket connection by another.
type state struct {
	mu sync.RWMutex

	sessionID string
	lastSeq   uint64
	hasSeq    bool
}

// Snapshot returns a consistent read of the current session ID and
// sequence number.
func (s *state) Snapshot() (sessionID string, lastSeq uint64, hasSeq bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sessionID, s.lastSeq, s.hasSeq
}

// SetReady installs the session ID returned by a READY event. It does
// not touch the sequence number.
func (s *state) SetReady(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = sessionID
}

// ObserveSeq advances last_seq to seq if seq is newer. Sequence
// numbers are monotonic non-decreasing within a session; an
// out-of-order or duplicate value is logged and tolerated rather than
// rejected, and does not lower last_seq.
func (s *state) ObserveSeq(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasSeq && seq <= s.lastSeq {
		Logger.Debug().Uint64("seq", seq).Uint64("last_seq", s.lastSeq).Msg("out-of-order or duplicate sequence number")
	}

	if !s.hasSeq || seq > s.lastSeq {
		s.lastSeq = seq
	}

	s.hasSeq = true
}

// Invalidate clears both fields, forcing the next handshake to
// Identify rather than Resume.
func (s *state) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionID = ""
	s.lastSeq = 0
	s.hasSeq = false
}

// CanResume reports whether enough state is present to attempt a
// Resume instead of a fresh Identify.
func (s *state) CanResume() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sessionID != "" && s.hasSeq
}
