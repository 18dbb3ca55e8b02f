package interactions

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"testing"
)

func signedHeader(t *testing.T, priv ed25519.PrivateKey, timestamp string, body []byte) http.Header {
	t.Helper()
	sig := ed25519.Sign(priv, append([]byte(timestamp), body...))
	h := http.Header{}
	h.Set(HeaderSignature, hex.EncodeToString(sig))
	h.Set(HeaderTimestamp, timestamp)
	return h
}

func TestVerifier(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	otherPub, _, _ := ed25519.GenerateKey(rand.Reader)

	v, err := NewVerifier(hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	body := []byte(`{"type":1}`)
	good := signedHeader(t, priv, "1700000000", body)

	if !v.Verify(good, body) {
		t.Fatal("valid signature rejected")
	}

	tests := []struct {
		name   string
		header func() http.Header
		body   []byte
	}{
		{"tampered body", func() http.Header { return good }, []byte(`{"type":2}`)},
		{"other timestamp", func() http.Header {
			h := good.Clone()
			h.Set(HeaderTimestamp, "1700000001")
			return h
		}, body},
		{"missing signature", func() http.Header {
			h := good.Clone()
			h.Del(HeaderSignature)
			return h
		}, body},
		{"missing timestamp", func() http.Header {
			h := good.Clone()
			h.Del(HeaderTimestamp)
			return h
		}, body},
		{"non-hex signature", func() http.Header {
			h := good.Clone()
			h.Set(HeaderSignature, "zz")
			return h
		}, body},
		{"short signature", func() http.Header {
			h := good.Clone()
			h.Set(HeaderSignature, "abcd")
			return h
		}, body},
		{"one byte flipped", func() http.Header {
			sig, err := hex.DecodeString(good.Get(HeaderSignature))
			if err != nil {
				t.Fatalf("decode good signature: %v", err)
			}
			sig[len(sig)/2] ^= 0x01
			h := good.Clone()
			h.Set(HeaderSignature, hex.EncodeToString(sig))
			return h
		}, body},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v.Verify(tt.header(), tt.body) {
				t.Fatal("expected rejection")
			}
		})
	}

	other, _ := NewVerifier(hex.EncodeToString(otherPub))
	if other.Verify(good, body) {
		t.Fatal("signature accepted under another key")
	}
}

func TestNewVerifierRejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "nothex", "abcd"} {
		if _, err := NewVerifier(key); err == nil {
			t.Errorf("NewVerifier(%q) succeeded", key)
		}
	}
}

func TestNilVerifierRejects(t *testing.T) {
	var v *Verifier
	if v.Verify(http.Header{}, nil) {
		t.Fatal("nil verifier accepted a request")
	}
}
