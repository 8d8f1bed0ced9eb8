package queue

import "errors"

// ErrActiveJob is returned by Delete when the job is currently leased by a
// worker: spec.md §4.1/§4.3 requires that an active build run to
// completion before it can be removed; there is no preemption.
var ErrActiveJob = errors.New("job is active and cannot be deleted")
