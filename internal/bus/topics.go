package bus

import "time"

// Interaction lifecycle topics. Observers subscribe with the "interaction."
// prefix to receive all of them.
const (
	TopicInteractionReceived  = "interaction.received"
	TopicInteractionCompleted = "interaction.completed"
	TopicInteractionFailed    = "interaction.failed"
	TopicInteractionDenied    = "interaction.denied"
)

// Side channel and gateway topics.
const (
	TopicSideChannelCall = "sidechannel.call"
	TopicRateLimited     = "gateway.rate_limited"
	TopicCDNSynced       = "cdn.synced"
)

// InteractionEvent describes one dispatched interaction.
type InteractionEvent struct {
	InteractionID string
	Kind          string // "ping", "command", "autocomplete", "unknown"
	Command       string
	Subcommand    string
	UserID        string
	Duration      time.Duration
	// UserDisplayable is set on failures whose message was shown verbatim.
	UserDisplayable bool
	Err             string
}

// SideChannelEvent is published for every call on the edit/follow-up channel.
type SideChannelEvent struct {
	InteractionID string
	Operation     string // "get_original", "edit_original", "followup", "error_followup"
	OK            bool
}

// RateLimitedEvent is published when the gateway rejects a request.
type RateLimitedEvent struct {
	RemoteAddr string
	Path       string
}

// CDNSyncedEvent is published after a cache sync run.
type CDNSyncedEvent struct {
	Cached int
	Failed int
}
