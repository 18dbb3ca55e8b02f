// Command policy_default_check confirms the built-in policy is closed by
// default and that a broken policy.yaml never replaces a working one.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/basket/haxxor-bunny/internal/policy"
)

const owner = "111111111111111111"

type check struct {
	name string
	got  bool
	want bool
}

func main() {
	dir, err := os.MkdirTemp("", "haxxor-policy-verify-*")
	if err != nil {
		fail("mktemp", err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "policy.yaml")

	defaults, err := policy.Load(path)
	if err != nil {
		fail("load_default", err)
	}
	checks := []check{
		{"default_owner_denied", defaults.AllowUser(owner), false},
		{"default_example_denied", defaults.AllowHTTPURL("https://example.com/a.png"), false},
		{"default_loopback_denied", defaults.AllowHTTPURL("http://127.0.0.1/a.png"), false},
		{"default_discord_cdn_allowed", defaults.AllowHTTPURL("https://cdn.discordapp.com/emojis/1.png"), true},
	}

	writePolicy(path, "owners:\n  - \""+owner+"\"\n")
	initial, err := policy.Load(path)
	if err != nil {
		fail("load_valid", err)
	}
	live := policy.NewLivePolicy(initial)

	writePolicy(path, "owners:\n  - not-a-snowflake\n")
	next, reloadErr := policy.Load(path)
	if reloadErr == nil {
		live.Reload(next)
	}
	checks = append(checks,
		check{"invalid_reload_rejected", reloadErr != nil, true},
		check{"previous_owner_retained", live.AllowUser(owner), true},
		check{"invalid_owner_denied", live.AllowUser("not-a-snowflake"), false},
	)

	pass := true
	for _, c := range checks {
		fmt.Printf("%s=%v\n", c.name, c.got)
		pass = pass && c.got == c.want
	}
	if !pass {
		fmt.Println("VERDICT FAIL")
		os.Exit(1)
	}
	fmt.Println("VERDICT PASS")
}

func writePolicy(path, body string) {
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		fail("write_policy", err)
	}
}

func fail(step string, err error) {
	fmt.Printf("%s_error=%v\n", step, err)
	os.Exit(1)
}
