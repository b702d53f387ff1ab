package domain

// Domain errors. Infrastructure failures are wrapped and passed through as-is.
var (
	ErrNotFound   = notFoundError("not found")
	ErrForbidden  = forbiddenError("forbidden")
	ErrConflict   = conflictError("conflict")
	ErrValidation = validationError("invalid data")
)

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

type forbiddenError string

func (e forbiddenError) Error() string { return string(e) }

type conflictError string

func (e conflictError) Error() string { return string(e) }

type validationError string

func (e validationError) Error() string { return string(e) }
