package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		check   func(t *testing.T, msg *Message)
	}{
		{
			name: "valid message",
			body: `{"job_id":"1700000000000-ab12cd34","job_type":"CONTENT_GENERATE","enqueued_at":1700000000000,"event":{"prompt":"hello"},"user_id":"user@example.com"}`,
			check: func(t *testing.T, msg *Message) {
				assert.Equal(t, "1700000000000-ab12cd34", msg.JobID)
				assert.Equal(t, TypeContentGenerate, msg.JobType)
				assert.Equal(t, int64(1700000000000), msg.EnqueuedAt)
				assert.Equal(t, "hello", msg.Event["prompt"])
				assert.Equal(t, "user@example.com", msg.UserID)
			},
		},
		{
			name:    "undecodable body",
			body:    `{{{not json`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "valid json but not an object",
			body:    `[1,2,3]`,
			wantErr: ErrMalformedMessage,
		},
		{
			name:    "missing job_id",
			body:    `{"job_type":"CONTENT_GENERATE","event":{}}`,
			wantErr: ErrMissingJobID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeMessage([]byte(tt.body))

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, msg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, msg)
			tt.check(t, msg)
		})
	}
}

func TestMessage_EncodeRoundTrip(t *testing.T) {
	msg := &Message{
		JobID:      NewID(),
		JobType:    TypeContentGenerate,
		EnqueuedAt: NowMillis(),
		Event:      map[string]any{"prompt": "draw a lighthouse"},
		UserID:     "anonymous",
	}

	body, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(body)
	require.NoError(t, err)
	assert.Equal(t, msg.JobID, decoded.JobID)
	assert.Equal(t, msg.UserID, decoded.UserID)
	assert.Equal(t, "draw a lighthouse", decoded.Event["prompt"])
}
