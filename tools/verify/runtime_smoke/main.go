package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	headerSignature = "X-Signature-Ed25519"
	headerTimestamp = "X-Signature-Timestamp"
)

func main() {
	base := flag.String("url", "http://127.0.0.1:3000", "server base url")
	keyHex := flag.String("key", "", "hex ed25519 private key or seed matching DISCORD_APP_PUBLIC_KEY")
	timeout := flag.Duration("timeout", 15*time.Second, "overall timeout")
	flag.Parse()

	priv, err := parsePrivateKey(*keyHex)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	root := strings.TrimRight(*base, "/")

	ok := true
	check := func(name string, err error) {
		if err != nil {
			fmt.Printf("%s=FAIL %v\n", name, err)
			ok = false
			return
		}
		fmt.Printf("%s=ok\n", name)
	}

	check("healthz", expectStatus(ctx, http.MethodGet, root+"/healthz", nil, nil, http.StatusOK))

	ping := pingBody()
	check("unsigned_rejected", expectStatus(ctx, http.MethodPost, root+"/interactions", nil, ping, http.StatusUnauthorized))

	signed := signHeader(priv, strconv.FormatInt(time.Now().Unix(), 10), ping)
	body, err := do(ctx, http.MethodPost, root+"/interactions", signed, ping, http.StatusOK)
	if err == nil {
		err = expectPong(body)
	}
	check("signed_ping", err)

	if !ok {
		fmt.Println("VERDICT FAIL")
		os.Exit(1)
	}
	fmt.Println("VERDICT PASS")
}

// parsePrivateKey accepts either a 32 byte seed or a 64 byte private key.
func parsePrivateKey(raw string) (ed25519.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	default:
		return nil, fmt.Errorf("key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(b))
	}
}

func pingBody() []byte {
	b, _ := json.Marshal(map[string]any{
		"id":             uuid.NewString(),
		"application_id": "smoke",
		"token":          "smoke",
		"type":           1,
	})
	return b
}

func signHeader(priv ed25519.PrivateKey, timestamp string, body []byte) http.Header {
	sig := ed25519.Sign(priv, append([]byte(timestamp), body...))
	h := http.Header{}
	h.Set(headerSignature, hex.EncodeToString(sig))
	h.Set(headerTimestamp, timestamp)
	h.Set("Content-Type", "application/json")
	return h
}

func expectPong(body []byte) error {
	var resp struct {
		Type int `json:"type"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if resp.Type != 1 {
		return fmt.Errorf("reply type %d, want 1", resp.Type)
	}
	return nil
}

func expectStatus(ctx context.Context, method, url string, header http.Header, body []byte, want int) error {
	_, err := do(ctx, method, url, header, body, want)
	return err
}

func do(ctx context.Context, method, url string, header http.Header, body []byte, want int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		return out, fmt.Errorf("status %d, want %d: %s", resp.StatusCode, want, strings.TrimSpace(string(out)))
	}
	return out, nil
}
