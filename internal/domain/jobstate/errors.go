package jobstate

import "errors"

// ErrNotFound is returned when a job id has no matching record.
var ErrNotFound = errors.New("job not found")
