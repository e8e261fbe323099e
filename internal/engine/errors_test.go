package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFriendlyMessage(t *testing.T) {
	throttled := "We are handling too many requests right now. Please retry in a few minutes."
	tooLong := "The job took too long to finish. Try again with a smaller request."
	unavailable := "The content engine is temporarily unavailable. Please retry later."

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "rate limit",
			raw:  "rate limit exceeded",
			want: throttled,
		},
		{
			name: "throttling",
			raw:  "ThrottlingException: request rejected",
			want: throttled,
		},
		{
			name: "invalid api key",
			raw:  "Unauthorized: invalid api key",
			want: unavailable,
		},
		{
			name: "timeout",
			raw:  "context deadline exceeded while rendering",
			want: tooLong,
		},
		{
			name: "case insensitive",
			raw:  "REQUEST TIMED OUT",
			want: tooLong,
		},
		{
			name: "first match wins when several rules apply",
			raw:  "timeout while waiting for rate limiter",
			want: tooLong,
		},
		{
			name: "no match falls back",
			raw:  "something completely unexpected happened",
			want: MsgGenericFailure,
		},
		{
			name: "empty text falls back",
			raw:  "",
			want: MsgGenericFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FriendlyMessage(tt.raw))
		})
	}
}

func TestFriendlyMessage_Deterministic(t *testing.T) {
	raw := "rate limit exceeded"
	first := FriendlyMessage(raw)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, FriendlyMessage(raw))
	}
}
