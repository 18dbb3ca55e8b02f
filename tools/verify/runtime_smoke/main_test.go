package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"
)

func TestParsePrivateKey(t *testing.T) {
	seed := strings.Repeat("01", ed25519.SeedSize)
	fromSeed, err := parsePrivateKey(seed)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	full, err := parsePrivateKey(hex.EncodeToString(fromSeed))
	if err != nil {
		t.Fatalf("full key: %v", err)
	}
	if !fromSeed.Equal(full) {
		t.Fatal("seed and full key disagree")
	}

	for _, bad := range []string{"", "zz", "0102"} {
		if _, err := parsePrivateKey(bad); err == nil {
			t.Errorf("parsePrivateKey(%q) accepted", bad)
		}
	}
}

func TestSignHeaderVerifies(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	body := pingBody()
	h := signHeader(priv, "1700000000", body)
	sig, err := hex.DecodeString(h.Get(headerSignature))
	if err != nil {
		t.Fatalf("decode sig: %v", err)
	}
	if !ed25519.Verify(pub, append([]byte(h.Get(headerTimestamp)), body...), sig) {
		t.Fatal("signature does not verify")
	}
}

func TestExpectPong(t *testing.T) {
	if err := expectPong([]byte(`{"type":1}`)); err != nil {
		t.Fatalf("pong rejected: %v", err)
	}
	if err := expectPong([]byte(`{"type":4}`)); err == nil {
		t.Fatal("non-pong accepted")
	}
	if err := expectPong([]byte(`{`)); err == nil {
		t.Fatal("bad json accepted")
	}
}
