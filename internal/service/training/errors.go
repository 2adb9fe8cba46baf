package training

import (
	"errors"
	"fmt"
)

var (
	ErrUserRequired    = errors.New("user id is required")
	ErrPuzzleRequired  = errors.New("puzzle id is required")
	ErrProfileNotFound = errors.New("rating profile not found")
)

// PersistenceWriteError marks a failed read or write on the rating/quota
// path. The operation's computed result is still returned alongside it.
type PersistenceWriteError struct {
	Op  string
	Err error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error { return e.Err }
