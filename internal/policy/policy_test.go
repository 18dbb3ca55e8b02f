package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/basket/haxxor-bunny/internal/policy"
)

func TestLoad_DefaultWhenMissing(t *testing.T) {
	p, err := policy.Load(filepath.Join(t.TempDir(), "missing-policy.yaml"))
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if p.AllowUser("123") {
		t.Fatal("default policy must not grant restricted commands")
	}
	if !p.AllowHTTPURL("https://cdn.discordapp.com/emojis/825769059994828810.png") {
		t.Fatal("default policy must allow the platform CDN")
	}
	if !p.AllowHTTPURL("https://twitter.github.io/twemoji/v/13.1.0/72x72/1f430.png") {
		t.Fatal("default policy must allow twemoji")
	}
	if p.AllowHTTPURL("https://evil.example.com/x.png") {
		t.Fatal("unknown hosts must be denied")
	}
	if p.AllowHTTPURL("http://cdn.discordapp.com/emojis/1.png") {
		t.Fatal("plain http must be denied without loopback mode")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("owners: [\"111\", \"222\"]\nallow_domains: [media.example.org]\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	p, err := policy.Load(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}
	if !p.AllowUser("111") || !p.AllowUser("222") || p.AllowUser("333") {
		t.Fatalf("unexpected owner decisions for %+v", p)
	}
	if !p.AllowHTTPURL("https://img.media.example.org/a.png") {
		t.Fatal("subdomain of allowed domain should pass")
	}
}

func TestLoad_RejectsNonNumericOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("owners: [\"alice\"]\n"), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	if _, err := policy.Load(path); err == nil {
		t.Fatal("expected invalid owner to be rejected")
	}
}

func TestParseOwnersAndWithOwners(t *testing.T) {
	ids := policy.ParseOwners(" 10, ,20,10 ,")
	if len(ids) != 3 {
		t.Fatalf("ParseOwners = %v", ids)
	}
	p := policy.Default().WithOwners(ids...)
	if len(p.Owners) != 2 {
		t.Fatalf("WithOwners should dedupe, got %v", p.Owners)
	}
	if !p.AllowUser("10") || !p.AllowUser("20") || p.AllowUser("") {
		t.Fatalf("unexpected decisions for %v", p.Owners)
	}
	if len(policy.ParseOwners("")) != 0 {
		t.Fatal("empty allow-list should parse to nothing")
	}
}

func TestAllowHTTPURL_BlocksPrivateHosts(t *testing.T) {
	p := policy.Policy{AllowDomains: []string{"127.0.0.1", "10.0.0.1", "localhost"}}
	for _, raw := range []string{"https://127.0.0.1/a", "https://10.0.0.1/a", "https://localhost/a"} {
		if p.AllowHTTPURL(raw) {
			t.Errorf("%s should be blocked", raw)
		}
	}
	p.AllowLoopback = true
	if !p.AllowHTTPURL("http://127.0.0.1:8080/a") {
		t.Error("loopback should pass in loopback mode")
	}
	if p.AllowHTTPURL("https://10.0.0.1/a") {
		t.Error("private ranges stay blocked in loopback mode")
	}
}

func TestPolicyVersion_StableAcrossOwnerOrder(t *testing.T) {
	a := policy.Default().WithOwners("1", "2")
	b := policy.Default().WithOwners("2", "1")
	if a.PolicyVersion() != b.PolicyVersion() {
		t.Fatal("version should not depend on owner order")
	}
	if a.PolicyVersion() == policy.Default().PolicyVersion() {
		t.Fatal("version should change when owners change")
	}
}

func TestLivePolicy_Reload(t *testing.T) {
	var _ policy.Checker = (*policy.LivePolicy)(nil)

	lp := policy.NewLivePolicy(policy.Default())
	before := lp.PolicyVersion()
	if lp.AllowUser("111") {
		t.Fatal("no owners yet")
	}

	lp.Reload(policy.Default().WithOwners("111"))
	if !lp.AllowUser("111") {
		t.Fatal("reloaded owner denied")
	}
	if lp.PolicyVersion() == before {
		t.Fatal("version should change on reload")
	}

	snap := lp.Snapshot()
	snap.Owners[0] = "999"
	if !lp.AllowUser("111") {
		t.Fatal("snapshot mutation leaked into live policy")
	}
}
