package gateway

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/basket/haxxor-bunny/internal/bus"
	"github.com/basket/haxxor-bunny/internal/config"
)

// bucket is a token bucket; the owning Limiter's mutex guards it.
type bucket struct {
	tokens   float64
	refilled time.Time
	lastSeen time.Time
}

// take refills for the time since the last call and consumes one token.
// When empty it reports how long until a token is available.
func (b *bucket) take(now time.Time, perSecond, burst float64) (bool, time.Duration) {
	b.tokens = math.Min(burst, b.tokens+now.Sub(b.refilled).Seconds()*perSecond)
	b.refilled = now
	b.lastSeen = now
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / perSecond
	return false, time.Duration(wait * float64(time.Second))
}

// Limiter throttles webhook traffic per remote host. Discord sends from a
// small pool of addresses, so limits are generous and mainly stop junk
// traffic from reaching signature verification.
type Limiter struct {
	enabled   bool
	perSecond float64
	burst     float64
	bus       *bus.Bus
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewLimiter(cfg config.RateLimitConfig, b *bus.Bus) *Limiter {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 10
	}
	return &Limiter{
		enabled:   cfg.Enabled,
		perSecond: float64(rpm) / 60,
		burst:     float64(burst),
		bus:       b,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// Allow consumes a token for host.
func (l *Limiter) Allow(host string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[host]
	if !ok {
		b = &bucket{tokens: l.burst, refilled: now}
		l.buckets[host] = b
	}
	return b.take(now, l.perSecond, l.burst)
}

// StartEviction drops idle buckets every interval until ctx ends.
func (l *Limiter) StartEviction(ctx context.Context, interval, maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.EvictIdle(maxIdle)
			}
		}
	}()
}

// EvictIdle forgets hosts not seen within maxIdle and returns how many
// were removed.
func (l *Limiter) EvictIdle(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for host, b := range l.buckets {
		if !b.lastSeen.After(cutoff) {
			delete(l.buckets, host)
			n++
		}
	}
	return n
}

func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Wrap applies the limiter to every route except /healthz.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	if !l.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		host := remoteHost(r.RemoteAddr)
		if ok, wait := l.Allow(host); !ok {
			l.bus.Publish(bus.TopicRateLimited, bus.RateLimitedEvent{RemoteAddr: host, Path: r.URL.Path})
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}

// remoteHost drops the port so a client's ephemeral ports share a bucket.
func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
