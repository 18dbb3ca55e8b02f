// Package interactions receives platform interactions and routes them to
// commands while enforcing the one-reply-per-interaction contract.
package interactions

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const (
	HeaderSignature = "X-Signature-Ed25519"
	HeaderTimestamp = "X-Signature-Timestamp"
)

// Verifier checks the detached ed25519 signature the platform puts on
// every webhook request.
type Verifier struct {
	key ed25519.PublicKey
}

// NewVerifier parses the application's hex encoded public key.
func NewVerifier(hexKey string) (*Verifier, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

// Verify reports whether body, exactly as received, was signed together
// with the timestamp header. Anything missing or malformed is rejected.
func (v *Verifier) Verify(header http.Header, body []byte) bool {
	if v == nil {
		return false
	}
	sigHex := header.Get(HeaderSignature)
	timestamp := header.Get(HeaderTimestamp)
	if sigHex == "" || timestamp == "" {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(v.key, msg, sig)
}
