// Package handler defines the boundary between the gateway/webhook
// machinery and user code that reacts to inbound chat events.
package handler

import (
	"context"

	"github.com/qqbotgo/gateway/envelope"
	"github.com/qqbotgo/gateway/rest"
)

// Handler receives decoded gateway events. Implementations may reply
// by calling methods on the supplied *rest.Client.
type Handler interface {
	// OnReady is invoked once per session establishment, after the
	// session ID has been installed.
	OnReady(ctx context.Context, ready *envelope.ReadyPayload)

	// OnGroupAtMessageCreate is invoked for GROUP_AT_MESSAGE_CREATE events.
	OnGroupAtMessageCreate(ctx context.Context, msg *envelope.GroupMessage, client *rest.Client)

	// OnC2CMessageCreate is invoked for C2C_MESSAGE_CREATE events.
	OnC2CMessageCreate(ctx context.Context, msg *envelope.C2CMessage, client *rest.Client)
}

// NopHandler implements Handler with no-op methods. Embed it in a
// host's handler type to override only the callbacks it cares about.
type NopHandler struct{}

func (NopHandler) OnReady(context.Context, *envelope.ReadyPayload) {}

func (NopHandler) OnGroupAtMessageCreate(context.Context, *envelope.GroupMessage, *rest.Client) {}

func (NopHandler) OnC2CMessageCreate(context.Context, *envelope.C2CMessage, *rest.Client) {}

var _ Handler = NopHandler{}
