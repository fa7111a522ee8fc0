package authority

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument is returned for an empty app id or a bad duration.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStalePhase matches every *StalePhaseError.
	ErrStalePhase = errors.New("stale phase")
	// ErrQuotaExhausted is returned by Accept when no quick task is left.
	ErrQuotaExhausted = errors.New("quick task quota exhausted")
	// ErrNoIntervention is returned by intervention intents for an app
	// without an in-flight intervention.
	ErrNoIntervention = errors.New("no intervention in flight")
	// ErrNotRecovered is returned when the authority is used before Recover.
	ErrNotRecovered = errors.New("authority state not recovered")
)

// StalePhaseError is an intent that arrived for a phase the app is no
// longer (or not yet) in. The intent had no effect.
type StalePhaseError struct {
	Op   string
	App  string
	Want Phase
	Got  Phase
}

func (e *StalePhaseError) Error() string {
	return fmt.Sprintf("%s %s: want phase %s, got %s", e.Op, e.App, e.Want, e.Got)
}

// Is matches ErrStalePhase.
func (e *StalePhaseError) Is(target error) bool { return target == ErrStalePhase }

// PersistenceError reports a batch that could not be written after retry.
// The in-memory state already reflects it.
type PersistenceError struct {
	Keys []string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", strings.Join(e.Keys, ","), e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
