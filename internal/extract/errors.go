package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when subject and mask dimensions differ
	ErrShapeMismatch = errors.New("subject and mask shapes differ")
	// ErrRaggedRow is returned by the reject policy when a group's rows differ in length
	ErrRaggedRow = errors.New("aggregate rows differ in length")
)

// SubjectError carries the subject and mask a failure happened on
type SubjectError struct {
	Subject string
	Mask    string
	Err     error
}

func (e *SubjectError) Error() string {
	if e.Mask == "" {
		return fmt.Sprintf("subject %s: %v", e.Subject, e.Err)
	}
	return fmt.Sprintf("subject %s, mask %s: %v", e.Subject, e.Mask, e.Err)
}

func (e *SubjectError) Unwrap() error {
	return e.Err
}
