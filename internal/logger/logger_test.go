package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []interface{}
		want []interface{}
	}{
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
		{
			name: "plain values pass through",
			in:   []interface{}{"plan_id", "p-1", "weeks", 4},
			want: []interface{}{"plan_id", "p-1", "weeks", 4},
		},
		{
			name: "sensitive keys redacted",
			in:   []interface{}{"api_key", "sk-123", "Authorization", "Bearer x", "jwt_secret", "s"},
			want: []interface{}{"api_key", "[REDACTED]", "Authorization", "[REDACTED]", "jwt_secret", "[REDACTED]"},
		},
		{
			name: "dangling key kept",
			in:   []interface{}{"status", 500, "orphan"},
			want: []interface{}{"status", 500, "orphan"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeKVs(tt.in)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"dev", "production", ""} {
		l, err := New(mode)
		assert.NoError(t, err, mode)
		assert.NotNil(t, l)
	}
	NewNop().With("service", "test").Info("ok", "token", "abc")
}
