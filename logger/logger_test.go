package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"jwt_secret", "abc", "project_id", 7, "Authorization", "Bearer x"})
	assert.Equal(t, []interface{}{"jwt_secret", "[REDACTED]", "project_id", 7, "Authorization", "[REDACTED]"}, out)
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}

func TestNopLogger(t *testing.T) {
	l := Nop().With("service", "test")
	l.Info("hello", "k", "v")
	l.Sync()
}
