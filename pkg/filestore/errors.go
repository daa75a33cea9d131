package filestore

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Mutation errors
	ErrReadOnly             = errors.New("filestore: store is read-only")
	ErrProtectedField       = errors.New("filestore: protected field")
	ErrConfirmationRequired = errors.New("filestore: confirmation required")
	ErrRecordNotFound       = errors.New("filestore: record not found")
	ErrRemoveFailed         = errors.New("filestore: remove failed")

	// State errors
	ErrNotConnected = errors.New("filestore: store not connected")
	ErrConsistency  = errors.New("filestore: consistency error")
	ErrOutsideRoot  = errors.New("filestore: path outside root")
)

type ReadOnlyError struct {
	Op string
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("filestore: %s refused, store is read-only", e.Op)
}

func (e *ReadOnlyError) Is(target error) bool {
	return target == ErrReadOnly
}

type ProtectedFieldError struct {
	FileID string
	Fields []string
}

func (e *ProtectedFieldError) Error() string {
	return fmt.Sprintf("filestore: record '%s' attempts to change protected fields: %s",
		e.FileID, strings.Join(e.Fields, ", "))
}

func (e *ProtectedFieldError) Is(target error) bool {
	return target == ErrProtectedField
}

type ConfirmationRequiredError struct {
	Count int
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("filestore: removing %d record(s) requires explicit confirmation", e.Count)
}

func (e *ConfirmationRequiredError) Is(target error) bool {
	return target == ErrConfirmationRequired
}

// ConsistencyError aborts a connect: a file_id collision or an untrustworthy side-car.
type ConsistencyError struct {
	Reason string
	FileID string
	Paths  []string
}

func (e *ConsistencyError) Error() string {
	msg := "filestore: consistency error: " + e.Reason
	if e.FileID != "" {
		msg += fmt.Sprintf(" (file_id '%s')", e.FileID)
	}
	if len(e.Paths) > 0 {
		msg += ": " + strings.Join(e.Paths, ", ")
	}
	return msg
}

func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}

// RemoveError reports a partially failed removal. Removed lists the file_ids
// whose files and metadata are gone, Failed maps file_id to its error.
type RemoveError struct {
	Removed []string
	Failed  map[string]error
}

func (e *RemoveError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Failed[id]))
	}
	return fmt.Sprintf("filestore: removed %d record(s), %d failed: %s",
		len(e.Removed), len(e.Failed), strings.Join(parts, "; "))
}

func (e *RemoveError) Is(target error) bool {
	return target == ErrRemoveFailed
}

func (e *RemoveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}
