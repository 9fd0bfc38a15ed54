// Package envelope implements the gateway wire codec: the envelope
// that every frame is wrapped in, the opcode taxonomy, and the
// command/event payloads carried inside it.
package envelope

import (
	"sync"

	"github.com/goccy/go-json"
)

// Opcode identifies the kind of a gateway frame.
//
// https://bot.q.qq.com/wiki/develop/api/gateway/reference.html
type Opcode uint8

// Gateway Opcodes.
const (
	FlagGatewayOpcodeDispatch        Opcode = 0
	FlagGatewayOpcodeHeartbeat       Opcode = 1
	FlagGatewayOpcodeIdentify        Opcode = 2
	FlagGatewayOpcodeResume          Opcode = 6
	FlagGatewayOpcodeReconnect       Opcode = 7
	FlagGatewayOpcodeInvalidSession  Opcode = 9
	FlagGatewayOpcodeHello           Opcode = 10
	FlagGatewayOpcodeHeartbeatACK    Opcode = 11
	FlagGatewayOpcodeCallbackACK     Opcode = 12
	FlagGatewayOpcodeWebhookValidate Opcode = 13
)

// Dispatch Event Names carried in Envelope.T for Opcode 0.
const (
	FlagGatewayEventNameReady               = "READY"
	FlagGatewayEventNameResumed             = "RESUMED"
	FlagGatewayEventNameGroupAtMessageCreate = "GROUP_AT_MESSAGE_CREATE"
	FlagGatewayEventNameC2CMessageCreate     = "C2C_MESSAGE_CREATE"
)

// Envelope represents a single gateway frame.
//
// https://bot.q.qq.com/wiki/develop/api/gateway/reference.html#_2-%E6%B6%88%E6%81%AF%E4%BD%93
type Envelope struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *uint64         `json:"s,omitempty"`
	T  *string         `json:"t,omitempty"`
	ID *string         `json:"id,omitempty"`
}

// envelopePool reuses Envelope values across the hot read path to avoid
// a per-frame allocation.
var envelopePool = sync.Pool{
	New: func() any { return new(Envelope) },
}

// Acquire returns an Envelope from the pool, cleared of any prior value.
func Acquire() *Envelope {
	e := envelopePool.Get().(*Envelope) //nolint:forcetypeassert

	e.Op = 0
	e.D = nil
	e.S = nil
	e.T = nil
	e.ID = nil

	return e
}

// Release returns an Envelope to the pool.
func Release(e *Envelope) {
	envelopePool.Put(e)
}
