package nsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     Code
		expected string
	}{
		{"Already active", CodeAlreadyActive, "The operation failed because it is already active."},
		{"Internal", CodeInternalError, "Internal error."},
		{"Max limit", CodeMaxLimit, "The operation failed because the maximum outstanding requests from the applications have reached."},
		{"Unknown", Code(99), "Unknown error."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ErrorMessage(tt.code))
		})
	}
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "registration failed", RegistrationFailed.String())
	assert.Equal(t, "unregistration failed", UnregistrationFailed.String())
	assert.Equal(t, "start discovery failed", StartDiscoveryFailed.String())
	assert.Equal(t, "stop discovery failed", StopDiscoveryFailed.String())
	assert.Equal(t, "resolve failed", ResolveFailed.String())
	assert.Equal(t, "unknown error", ErrorKind(42).String())
}
