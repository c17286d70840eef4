/*
errors.go - Centralized error types for the entitlement engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The orchestrators raise these; the API maps them to status codes.

ERROR CATEGORIES:
  1. NotFound   - A referenced entity (employee, leave type, policy, leave
                  year configuration, cycle) does not exist
  2. BadRequest - A domain rule is violated (ineligible employee, duplicate
                  balance, overlapping cycle, missing active policy)
  3. Anything else is infrastructure and propagates unchanged

USAGE:
  if generic.IsNotFound(err) {
      // 404
  }

  var bad *generic.BadRequestError
  if errors.As(err, &bad) {
      log.Println(bad.Reason)
  }

SEE ALSO:
  - leave/cycles.go, leave/balances.go: Raise these errors
  - api/handlers.go: Maps them to HTTP status
*/
package generic

import (
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is wrapped by every NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrBadRequest is wrapped by every BadRequestError.
	ErrBadRequest = errors.New("bad request")

	// ErrTxDone is returned when a committed or rolled back Tx is reused.
	ErrTxDone = errors.New("transaction already finished")

	// ErrInvalidCycleLength is returned when a policy cycle is shorter than one year.
	ErrInvalidCycleLength = errors.New("cycle length must be at least one year")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing entity and the key it was looked up by.
type NotFoundError struct {
	Entity string // e.g. "employee", "leave type"
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFound(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// BadRequest reasons. These are stable, machine-readable codes.
const (
	ReasonIneligible        = "ineligible"
	ReasonDuplicateBalance  = "balance_already_exists"
	ReasonOverlappingCycle  = "cycle_overlap"
	ReasonNoActivePolicy    = "no_active_policy"
	ReasonInactiveLeaveType = "inactive_leave_type"
	ReasonInvalidInput      = "invalid_input"
)

// BadRequestError reports a violated domain rule.
type BadRequestError struct {
	Reason  string
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

func (e *BadRequestError) Unwrap() error { return ErrBadRequest }

func NewBadRequest(reason, format string, args ...any) *BadRequestError {
	return &BadRequestError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBadRequest returns true if the error is a domain rule violation.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrBadRequest)
}

// StatusCode maps an error to an HTTP-like status code. Nil maps to 200.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsNotFound(err):
		return http.StatusNotFound
	case IsBadRequest(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
