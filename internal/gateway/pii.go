package gateway

import (
	"context"
	"regexp"

	"github.com/helpgate/helpgate/internal/channel"
)

// PII patterns redacted from outgoing answers before any downstream hook
// sees the text. Order matters: matrix ids before emails, since both
// contain "@".
var piiPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"matrix-id", regexp.MustCompile(`@[A-Za-z0-9._=\-/]+:[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"email", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{"btc-address", regexp.MustCompile(`\b(?:bc1[a-zA-HJ-NP-Z0-9]{11,71}|[13][a-km-zA-HJ-NP-Z1-9]{25,34})\b`)},
	{"ip-address", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{"phone", regexp.MustCompile(`\+\d[\d\s\-()]{7,16}\d`)},
}

// RedactPII replaces recognized PII patterns with labeled placeholders.
func RedactPII(text string) string {
	for _, p := range piiPatterns {
		text = p.re.ReplaceAllString(text, "[redacted-"+p.label+"]")
	}
	return text
}

// NewPIIFilterHook builds the post-hook that scrubs answers. It runs at
// HIGH priority so every later hook works on redacted text.
func NewPIIFilterHook() PostHook {
	return PostHook{
		Name:     "pii_filter",
		Priority: PriorityHigh,
		Fn: func(_ context.Context, _ *channel.IncomingMessage, out *channel.OutgoingMessage) *channel.GatewayError {
			out.Answer = RedactPII(out.Answer)
			return nil
		},
	}
}
