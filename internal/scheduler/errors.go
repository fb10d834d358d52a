package scheduler

import "errors"

// ErrUnknownTaskType indicates a fired task has no registered executor
// and therefore cannot be dispatched.
var ErrUnknownTaskType = errors.New("no executor registered for task type")
