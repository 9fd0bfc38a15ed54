package rest

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
)

// GroupMessageEndpoint and C2CMessageEndpoint are the fixed,
// %s-formatted outbound message endpoints; package variables for the
// same override reason as AuthEndpoint and GatewayEndpoint.
var (
	GroupMessageEndpoint = "https://api.sgroup.qq.com/v2/groups/%s/messages"
	C2CMessageEndpoint   = "https://api.sgroup.qq.com/v2/users/%s/messages"
)

// MessageBody is the shared request body for both outbound message
// endpoints; unset optional fields are omitted from the wire payload.
type MessageBody struct {
	MsgType  int    `json:"msg_type"`
	Content  string `json:"content,omitempty"`
	MsgID    string `json:"msg_id,omitempty"`
	EventID  string `json:"event_id,omitempty"`
	MsgSeq   string `json:"msg_seq,omitempty"`
	IsWakeup bool   `json:"is_wakeup,omitempty"`
}

// PostGroupMessage sends body as a reply in the given group.
func (c *Client) PostGroupMessage(ctx context.Context, groupOpenID string, body MessageBody) error {
	return c.postMessage(ctx, fmt.Sprintf(GroupMessageEndpoint, groupOpenID), body)
}

// PostC2CMessage sends body as a direct reply to a user.
func (c *Client) PostC2CMessage(ctx context.Context, userOpenID string, body MessageBody) error {
	return c.postMessage(ctx, fmt.Sprintf(C2CMessageEndpoint, userOpenID), body)
}

func (c *Client) postMessage(ctx context.Context, uri string, body MessageBody) error {
	data, err := json.Marshal(body)
	if err != nil {
		return PostMessageFailedError{Err: ErrSerialization{Context: "message body", Err: err}}
	}

	if err := c.send(ctx, fasthttp.MethodPost, uri, data, true, nil); err != nil {
		return PostMessageFailedError{Err: err}
	}

	return nil
}
