// Package errors holds transport-neutral sentinels. Service errors wrap one of these so the
// HTTP layer can pick a status without knowing service types.
package errors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict marks writes that lost a race with a concurrent writer.
	ErrConflict = errors.New("conflict")
)
