package policy

import (
	"fmt"
	"hash/fnv"
	"net/netip"
	"net/url"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Checker is the interface consumers use for access decisions.
type Checker interface {
	// AllowUser reports whether the user may run restricted commands.
	AllowUser(userID string) bool
	// AllowHTTPURL reports whether media may be fetched from the URL.
	AllowHTTPURL(raw string) bool
	PolicyVersion() string
}

// Policy is the serializable policy data. The owner list from the
// environment is merged in at startup with WithOwners.
type Policy struct {
	Owners        []string `yaml:"owners"`
	AllowDomains  []string `yaml:"allow_domains"`
	AllowLoopback bool     `yaml:"allow_loopback"`
}

// Default permits media from the platform CDN and the twemoji mirror and
// grants restricted commands to nobody.
func Default() Policy {
	return Policy{
		AllowDomains: []string{"cdn.discordapp.com", "twitter.github.io"},
	}
}

// Load reads policy.yaml. A missing or empty file yields Default.
func Load(path string) (Policy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	if len(data) == 0 {
		return Default(), nil
	}
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// ParseOwners splits a comma separated allow-list, dropping blanks.
func ParseOwners(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// WithOwners returns a copy with the given owners added.
func (p Policy) WithOwners(ids ...string) Policy {
	owners := slices.Clone(p.Owners)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(owners, id) {
			owners = append(owners, id)
		}
	}
	p.Owners = owners
	return p
}

func (p Policy) AllowUser(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	return slices.Contains(p.Owners, userID)
}

func (p Policy) AllowHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	scheme := strings.ToLower(strings.TrimSpace(u.Scheme))
	if scheme != "https" && !(scheme == "http" && p.AllowLoopback) {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if isBlockedHost(host, p.AllowLoopback) {
		return false
	}
	for _, domain := range p.AllowDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func isBlockedHost(host string, allowLoopback bool) bool {
	if host == "localhost" {
		return !allowLoopback
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return false // a hostname
	}
	if allowLoopback && ip.IsLoopback() {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

func (p Policy) PolicyVersion() string {
	h := fnv.New64a()
	owners := slices.Clone(p.Owners)
	sort.Strings(owners)
	for _, v := range owners {
		_, _ = h.Write([]byte("owner=" + v + "|"))
	}
	for _, v := range p.AllowDomains {
		_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(v)) + "|"))
	}
	if p.AllowLoopback {
		_, _ = h.Write([]byte("allow_loopback=true|"))
	}
	return "policy-" + strconv.FormatUint(h.Sum64(), 16)
}

func (p Policy) validate() error {
	for _, id := range p.Owners {
		if _, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64); err != nil {
			return fmt.Errorf("owner %q is not a user id", id)
		}
	}
	return nil
}

// LivePolicy is a Checker whose data can be swapped while requests are
// being served.
type LivePolicy struct {
	mu   sync.RWMutex
	data Policy
}

func NewLivePolicy(initial Policy) *LivePolicy {
	return &LivePolicy{data: initial}
}

func (lp *LivePolicy) AllowUser(userID string) bool {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	return lp.data.AllowUser(userID)
}

func (lp *LivePolicy) AllowHTTPURL(raw string) bool {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	return lp.data.AllowHTTPURL(raw)
}

func (lp *LivePolicy) PolicyVersion() string {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	return lp.data.PolicyVersion()
}

// Snapshot returns a copy of the current data.
func (lp *LivePolicy) Snapshot() Policy {
	lp.mu.RLock()
	defer lp.mu.RUnlock()
	p := lp.data
	p.Owners = slices.Clone(p.Owners)
	p.AllowDomains = slices.Clone(p.AllowDomains)
	return p
}

// Reload replaces the policy data.
func (lp *LivePolicy) Reload(p Policy) {
	lp.mu.Lock()
	lp.data = p
	lp.mu.Unlock()
}
