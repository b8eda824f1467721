package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates input rejected before any datastore call was made.
	ErrValidation = errors.New("validation failed")
	// ErrBranchRequired indicates a request carried no branch context.
	ErrBranchRequired = errors.New("branch context required")
	// ErrForbidden indicates the caller failed a credential check.
	ErrForbidden = errors.New("forbidden")
)
