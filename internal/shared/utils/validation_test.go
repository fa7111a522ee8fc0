package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAppID(t *testing.T) {
	tests := []struct {
		name    string
		appID   string
		wantErr bool
	}{
		{"package name", "com.instagram.android", false},
		{"plain", "Safari", false},
		{"with dash", "org.my-app_2", false},
		{"empty", "", true},
		{"spaces", "com.bad app", true},
		{"slash", "com/evil", true},
		{"null byte", "com.a\x00", true},
		{"too long", strings.Repeat("a", MaxAppIDLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAppID(tt.appID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("", "activity"))
	assert.NoError(t, ValidateName("walk", "activity"))
	assert.Error(t, ValidateName(strings.Repeat("x", MaxNameLength+1), "activity"))
}

func TestValidateDurationMs(t *testing.T) {
	d, err := ValidateDurationMs(90_000, "duration_ms", time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = ValidateDurationMs(0, "duration_ms", time.Hour, true)
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ValidateDurationMs(0, "duration_ms", time.Hour, false)
	assert.Error(t, err)
	_, err = ValidateDurationMs(-1, "duration_ms", time.Hour, true)
	assert.Error(t, err)
	_, err = ValidateDurationMs(int64(2*time.Hour/time.Millisecond), "duration_ms", time.Hour, true)
	assert.Error(t, err)
}
