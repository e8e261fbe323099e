package engine

import "strings"

// Fixed user-facing messages for failures resolved outside the keyword
// table.
const (
	// MsgInvalidJobType is written when no handler is registered for a
	// job's type.
	MsgInvalidJobType = "This job type is not supported. Please contact support if the problem persists."

	// MsgEmptyResult is written when a handler returned without error
	// but produced no usable artifact.
	MsgEmptyResult = "The job finished without producing any content. Please try again."

	// MsgTooManyAttempts is written when a job exhausts the configured
	// attempt budget.
	MsgTooManyAttempts = "The job failed too many times and will not be retried. Please submit it again."

	// MsgGenericFailure is the fallback when no keyword rule matches.
	MsgGenericFailure = "Something went wrong while processing your job. Please try again."
)

// friendlyRule maps raw-error keywords to a short, non-technical
// message. Rules are checked in order; the first match wins.
type friendlyRule struct {
	keywords []string
	message  string
}

var friendlyRules = []friendlyRule{
	{
		keywords: []string{"timeout", "timed out", "deadline exceeded"},
		message:  "The job took too long to finish. Try again with a smaller request.",
	},
	{
		keywords: []string{"rate", "throttle", "too many requests"},
		message:  "We are handling too many requests right now. Please retry in a few minutes.",
	},
	{
		keywords: []string{"unauthorized", "api key", "forbidden", "invalid credentials"},
		message:  "The content engine is temporarily unavailable. Please retry later.",
	},
	{
		keywords: []string{"browser", "chromium", "navigation", "page crash"},
		message:  "The rendering engine ran into a problem. Please retry your request.",
	},
	{
		keywords: []string{"connection", "network", "unreachable", "no such host"},
		message:  "We could not reach a required service. Please retry in a moment.",
	},
}

// FriendlyMessage resolves raw error text to a short user-facing
// sentence via ordered case-insensitive substring matching. The raw
// text is kept separately as the technical error; this function is
// deterministic by construction.
func FriendlyMessage(raw string) string {
	lowered := strings.ToLower(raw)
	for _, rule := range friendlyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.message
			}
		}
	}
	return MsgGenericFailure
}
