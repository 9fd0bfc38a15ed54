package webhook

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/qqbotgo/gateway/envelope"
)

func TestValidatorRespondSignsEventTSPlainToken(t *testing.T) {
	v := NewValidator("SEED")

	resp := v.Respond(envelope.ValidationRequest{
		EventTS:    "1700000000",
		PlainToken: "abc",
	})

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

func TestExtendSeedRepeatsAndTruncates(t *testing.T) {
	seed := extendSeed("ab")

	if len(seed) != seedSize {
		t.Fatalf("seed length = %d, want %d", len(seed), seedSize)
	}

	// "ab" is appended whole until the seed is at least seedSize bytes
	// long ("abab...ab"), then the result is truncated to seedSize.
	want := "abababababababababababababababababababab"[:seedSize]
	if string(seed) != want {
		t.Fatalf("seed = %q, want %q", seed, want)
	}
}

func TestExtendSeedEmptySecretIsZeroFilled(t *testing.T) {
	seed := extendSeed("")

	if len(seed) != seedSize {
		t.Fatalf("seed length = %d, want %d", len(seed), seedSize)
	}

	for i, b := range seed {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestDifferentSecretsYieldDifferentSignatures(t *testing.T) {
	req := envelope.ValidationRequest{EventTS: "1700000000", PlainToken: "abc"}

	a := NewValidator("SEED-ONE").Respond(req)
	b := NewValidator("SEED-TWO").Respond(req)

	if a.Signature == b.Signature {
		t.Fatal("expected different secrets to produce different signatures")
	}
}
