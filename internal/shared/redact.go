package shared

import "regexp"

// redaction rewrites one kind of credential. Templates keep the label
// that precedes the secret so redacted lines stay readable.
type redaction struct {
	re   *regexp.Regexp
	with string
}

var redactions = []redaction{
	// bot_token=..., api-key: "..."
	{regexp.MustCompile(`(?i)((?:api[_-]?key|apikey|secret[_-]?key|auth[_-]?token|bot[_-]?token|bearer)\s*[:=]\s*)"?[A-Za-z0-9_\-./+=]{16,}"?`), `${1}[REDACTED]`},
	// Authorization header values
	{regexp.MustCompile(`(?i)((?:Bearer|Bot)\s+)[A-Za-z0-9_\-./+=]{16,}`), `${1}[REDACTED]`},
	// interaction tokens are the path segment after the application id
	{regexp.MustCompile(`(/webhooks/\d+/)[A-Za-z0-9_\-.]{16,}`), `${1}[REDACTED]`},
	// bare bot tokens: user id, timestamp, hmac
	{regexp.MustCompile(`[A-Za-z0-9_\-]{23,28}\.[A-Za-z0-9_\-]{6,7}\.[A-Za-z0-9_\-]{27,}`), `[REDACTED]`},
}

// Redact masks Discord credentials in text bound for logs, audit lines or
// error messages.
func Redact(s string) string {
	for _, r := range redactions {
		s = r.re.ReplaceAllString(s, r.with)
	}
	return s
}
