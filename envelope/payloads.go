package envelope

import "github.com/goccy/go-json"

// Hello Structure.
//
// Sent by the gateway immediately after the websocket handshake.
type Hello struct {
	HeartbeatInterval uint64 `json:"heartbeat_interval"`
}

// Identify Structure.
//
// Sent to start a brand new session; mutually exclusive with Resume.
type Identify struct {
	Token   string `json:"token"`
	Intents uint32 `json:"intents"`
	Shard   [2]int `json:"shard,omitempty"`
}

// Resume Structure.
//
// Sent to reattach to an existing session identified by SessionID,
// replaying events after Seq.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
}

// Heartbeat carries the last observed sequence number, or nil when none
// has been observed yet. Unlike the other command payloads, its wire
// form is the bare value itself (`null` or a number) rather than a
// JSON object: Envelope.D for Opcode 1 is `<seq-or-null>`, not
// `{"d":<seq-or-null>}`.
type Heartbeat struct {
	Data *uint64
}

// MarshalJSON renders the heartbeat payload as the bare sequence value.
func (h Heartbeat) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Data)
}

// UnmarshalJSON reads the bare sequence value into the heartbeat payload.
func (h *Heartbeat) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &h.Data)
}

// User represents the minimal bot identity returned in Ready.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot,omitempty"`
}

// ReadyPayload is the Dispatch payload for the READY event.
type ReadyPayload struct {
	SessionID string `json:"session_id"`
	User      User   `json:"user"`
}

// MessageAuthor identifies the sender of a chat event. Group and C2C
// deliveries populate different subsets of these fields: group events
// carry MemberOpenID/UnionOpenID, C2C events carry UserOpenID.
type MessageAuthor struct {
	ID           string `json:"id,omitempty"`
	UserOpenID   string `json:"user_openid,omitempty"`
	MemberOpenID string `json:"member_openid,omitempty"`
	UnionOpenID  string `json:"union_openid,omitempty"`
}

// GroupMessage is the Dispatch payload for GROUP_AT_MESSAGE_CREATE.
type GroupMessage struct {
	ID           string        `json:"id"`
	Content      string        `json:"content"`
	GroupID      string        `json:"group_id,omitempty"`
	GroupOpenID  string        `json:"group_openid"`
	MessageScene string        `json:"message_scene,omitempty"`
	MessageType  int           `json:"message_type,omitempty"`
	Timestamp    string        `json:"timestamp"`
	Author       MessageAuthor `json:"author"`
}

// C2CMessage is the Dispatch payload for C2C_MESSAGE_CREATE.
type C2CMessage struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Timestamp string        `json:"timestamp"`
	Author    MessageAuthor `json:"author"`
}

// ValidationRequest is the Opcode 13 payload delivered to webhook intake.
type ValidationRequest struct {
	PlainToken string `json:"plain_token"`
	EventTS    string `json:"event_ts"`
}

// ValidationResponse is returned in response to a ValidationRequest.
type ValidationResponse struct {
	PlainToken string `json:"plain_token"`
	Signature  string `json:"signature"`
}

// CallbackACK is the Opcode 12 response to a webhook Dispatch delivery.
type CallbackACK struct {
	Op Opcode `json:"op"`
}
