package checkin

import (
	"fmt"

	"github.com/lumenhealth/checkin/backend/internal/model/session"
)

// ValidationError reports malformed or rejected input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// StateError reports an operation against a session whose phase forbids it,
// including any message to a completed or aborted session.
type StateError struct {
	SessionID string
	Phase     session.Phase
	Reason    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session %s in phase %s: %s", e.SessionID, e.Phase, e.Reason)
}

// CorruptionError reports persisted session state that fails invariant
// checks. The session is no longer trusted to continue.
type CorruptionError struct {
	SessionID string
	Reason    string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("session %s state corrupted: %s", e.SessionID, e.Reason)
}

// TransientError reports a dependency failure that persisted through the
// retry budget. The operation may succeed if repeated later.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
