package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Size limits for inbound payloads.
const (
	MaxRequestSize = 16 * 1024 // 16KB - HTTP request body limit
	MaxMessageSize = 16 * 1024 // 16KB - single WebSocket frame limit
)

// String length limits
const (
	MaxAppIDLength = 255
	MaxNameLength  = 64
	MaxStepLength  = 64
)

// Duration limits for intents.
const (
	MaxQuickTaskDuration = 24 * time.Hour
	MaxIntentionDuration = 24 * time.Hour
	MaxActivityDuration  = 12 * time.Hour
)

// AppIDPattern matches package-style app ids (com.example.app) and the
// plain names some platforms report.
var AppIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateAppID validates an app id
func ValidateAppID(appID string) error {
	if err := ValidateString(appID, "app_id", 1, MaxAppIDLength, true); err != nil {
		return err
	}
	if !AppIDPattern.MatchString(appID) {
		return fmt.Errorf("app_id contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)")
	}
	return nil
}

// ValidateName validates an optional short label such as an activity name.
func ValidateName(name, fieldName string) error {
	return ValidateString(name, fieldName, 0, MaxNameLength, false)
}

// ValidateDurationMs validates a millisecond duration field. Zero is
// accepted when allowZero is set and means "use the default".
func ValidateDurationMs(ms int64, fieldName string, limit time.Duration, allowZero bool) (time.Duration, error) {
	switch {
	case ms < 0:
		return 0, fmt.Errorf("%s must not be negative", fieldName)
	case ms == 0 && !allowZero:
		return 0, fmt.Errorf("%s must be positive", fieldName)
	}
	d := time.Duration(ms) * time.Millisecond
	if d > limit {
		return 0, fmt.Errorf("%s must not exceed %s", fieldName, limit)
	}
	return d, nil
}
