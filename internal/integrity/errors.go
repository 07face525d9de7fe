package integrity

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownIssueType is returned for issue types with no registered rule.
	ErrUnknownIssueType = errors.New("unknown issue type")
	// ErrNotAutoFixable is returned when a fix is requested for an issue that needs an operator.
	ErrNotAutoFixable = errors.New("issue type is not auto-fixable")
	// ErrPersonNotFound is returned when an operator action names a missing person.
	ErrPersonNotFound = errors.New("person not found")
)

// ReferentialIntegrityError reports a row whose reference does not resolve.
type ReferentialIntegrityError struct {
	Entity    Entity
	ID        int64
	Reference string
	TargetID  int64
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("%s %d: %s %d does not exist", e.Entity, e.ID, e.Reference, e.TargetID)
}

// InvariantViolation reports a broken consistency rule detected during a write,
// such as a merge that did not conserve observation counts.
type InvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %q violated: %s", e.Invariant, e.Detail)
}

// DuplicateConflict reports a merge request that cannot be executed as given.
type DuplicateConflict struct {
	KeepID     int64
	DiscardIDs []int64
	Reason     string
}

func (e *DuplicateConflict) Error() string {
	return fmt.Sprintf("cannot merge into person %d: %s", e.KeepID, e.Reason)
}

// PageFetchFailure reports a page that could not be read while scanning an entity.
type PageFetchFailure struct {
	Entity  Entity
	AfterID int64
	Err     error
}

func (e *PageFetchFailure) Error() string {
	return fmt.Sprintf("fetch %s page after id %d: %v", e.Entity, e.AfterID, e.Err)
}

func (e *PageFetchFailure) Unwrap() error {
	return e.Err
}

// CollaboratorUnavailable reports a failed call to the external ML service or index.
type CollaboratorUnavailable struct {
	Service   string
	Operation string
	Err       error
}

func (e *CollaboratorUnavailable) Error() string {
	return fmt.Sprintf("%s %s unavailable: %v", e.Service, e.Operation, e.Err)
}

func (e *CollaboratorUnavailable) Unwrap() error {
	return e.Err
}

// RowError is a per-row failure collected by a batch fix.
type RowError struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}
