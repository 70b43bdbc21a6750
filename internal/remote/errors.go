package remote

import "errors"

// Error kinds reported by collaborator implementations. Callers select a
// policy per kind: ErrAlreadyExists on node creation is tolerated as
// success, ErrNotFound on deletion means nothing to do, anything else is a
// real failure for the operation at hand.
var (
	ErrNotFound      = errors.New("remote: not found")
	ErrAlreadyExists = errors.New("remote: already exists")
	ErrForbidden     = errors.New("remote: forbidden")
)
