// Package webhook implements the HTTP webhook intake path: Ed25519
// challenge-response validation and dispatch of inbound chat events
// delivered as HTTP POSTs instead of over the gateway websocket.
package webhook

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/qqbotgo/gateway/envelope"
)

// seedSize is the byte length Ed25519 key generation requires.
const seedSize = ed25519.SeedSize // 32

// Validator answers Opcode 13 WebhookValidate challenges using the
// bot's client secret. The platform requires this exact bit-for-bit
// derivation: extend the secret to (at least) 32 bytes by repeating
// it, truncate to exactly 32, and use that as an Ed25519 seed.
//
// crypto/ed25519 is used directly rather than through a third-party
// signing library: Ed25519 is a stdlib-native primitive and no example
// in the corpus reaches for an external package for it.
type Validator struct {
	seed ed25519.PrivateKey
}

// NewValidator derives the signing key from clientSecret.
func NewValidator(clientSecret string) *Validator {
	return &Validator{seed: ed25519.NewKeyFromSeed(extendSeed(clientSecret))}
}

// extendSeed repeats secret until it is at least seedSize bytes, then
// truncates to exactly seedSize bytes.
func extendSeed(secret string) []byte {
	if secret == "" {
		return make([]byte, seedSize)
	}

	extended := make([]byte, 0, seedSize+len(secret))
	for len(extended) < seedSize {
		extended = append(extended, secret...)
	}

	return extended[:seedSize]
}

// Respond signs req.EventTS||req.PlainToken and returns the response
// the platform expects back.
func (v *Validator) Respond(req envelope.ValidationRequest) envelope.ValidationResponse {
	sig := ed25519.Sign(v.seed, []byte(req.EventTS+req.PlainToken))

	return envelope.ValidationResponse{
		PlainToken: req.PlainToken,
		Signature:  hex.EncodeToString(sig),
	}
}
