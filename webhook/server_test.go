package webhook

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/qqbotgo/gateway/envelope"
	"github.com/qqbotgo/gateway/handler"
	"github.com/qqbotgo/gateway/rest"
)

type recordingHandler struct {
	handler.NopHandler

	group chan *envelope.GroupMessage
	c2c   chan *envelope.C2CMessage
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		group: make(chan *envelope.GroupMessage, 1),
		c2c:   make(chan *envelope.C2CMessage, 1),
	}
}

func (h *recordingHandler) OnGroupAtMessageCreate(_ context.Context, msg *envelope.GroupMessage, _ *rest.Client) {
	h.group <- msg
}

func (h *recordingHandler) OnC2CMessageCreate(_ context.Context, msg *envelope.C2CMessage, _ *rest.Client) {
	h.c2c <- msg
}

func post(t *testing.T, s *Server, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	return rec
}

func TestServerHealthz(t *testing.T) {
	s := NewServer("secret", newRecordingHandler(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServerValidateRespondsWithSignature(t *testing.T) {
	s := NewServer("SEED", newRecordingHandler(), nil)

	body, err := json.Marshal(envelope.Envelope{
		Op: envelope.FlagGatewayOpcodeWebhookValidate,
		D: mustRawJSON(t, envelope.ValidationRequest{
			PlainToken: "abc",
			EventTS:    "1700000000",
		}),
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := post(t, s, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("validate status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp envelope.ValidationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if resp.PlainToken != "abc" {
		t.Fatalf("PlainToken = %q, want %q", resp.PlainToken, "abc")
	}

	sig, err := hex.DecodeString(resp.Signature)
	if err != nil {
		t.Fatalf("signature is not valid hex: %v", err)
	}

	pub := ed25519.NewKeyFromSeed(extendSeed("SEED")).Public().(ed25519.PublicKey)
	if !ed25519.Verify(pub, []byte("1700000000abc"), sig) {
		t.Fatal("signature failed Ed25519 verification")
	}
}

func TestServerDispatchGroupMessageAcksAndInvokesHandler(t *testing.T) {
	h := newRecordingHandler()
	s := NewServer("secret", h, nil)

	seq := uint64(3)
	eventName := envelope.FlagGatewayEventNameGroupAtMessageCreate

	body, err := json.Marshal(envelope.Envelope{
		Op: envelope.FlagGatewayOpcodeDispatch,
		S:  &seq,
		T:  &eventName,
		D: mustRawJSON(t, envelope.GroupMessage{
			ID:          "msg1",
			Content:     "hello",
			GroupOpenID: "g1",
		}),
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := post(t, s, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("dispatch status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var ack envelope.CallbackACK
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}

	if ack.Op != envelope.FlagGatewayOpcodeCallbackACK {
		t.Fatalf("ack.Op = %d, want %d", ack.Op, envelope.FlagGatewayOpcodeCallbackACK)
	}

	select {
	case msg := <-h.group:
		if msg.GroupOpenID != "g1" || msg.Content != "hello" {
			t.Fatalf("unexpected group message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked with the group message")
	}
}

func TestServerDispatchC2CMessageInvokesHandler(t *testing.T) {
	h := newRecordingHandler()
	s := NewServer("secret", h, nil)

	eventName := envelope.FlagGatewayEventNameC2CMessageCreate

	body, err := json.Marshal(envelope.Envelope{
		Op: envelope.FlagGatewayOpcodeDispatch,
		T:  &eventName,
		D: mustRawJSON(t, envelope.C2CMessage{
			ID:      "msg2",
			Content: "hi there",
		}),
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	post(t, s, body)

	select {
	case msg := <-h.c2c:
		if msg.ID != "msg2" || msg.Content != "hi there" {
			t.Fatalf("unexpected c2c message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked with the c2c message")
	}
}

func TestServerUnsupportedOpcodeReturnsBadRequest(t *testing.T) {
	s := NewServer("secret", newRecordingHandler(), nil)

	body, err := json.Marshal(envelope.Envelope{Op: envelope.FlagGatewayOpcodeHello})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	rec := post(t, s, body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServerMalformedBodyReturnsBadRequest(t *testing.T) {
	s := NewServer("secret", newRecordingHandler(), nil)

	rec := post(t, s, []byte("not json"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func mustRawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	return data
}
