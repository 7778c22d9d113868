package orchestrator

import "errors"

// ErrInvalidState is returned when a control operation is invoked in a
// lifecycle state that forbids it. The operation is a no-op: system state
// is unchanged and no event is emitted.
var ErrInvalidState = errors.New("operation not valid in current job state")
