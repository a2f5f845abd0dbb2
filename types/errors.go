package types

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy for the reservation/provisioning core. Everything here is
// recoverable at the orchestration layer; the distinction that matters to
// callers is policy rejection (authorization, safety, validation) versus
// backend fault (switch or registry unreachable / protocol error).

// ValidationError reports an empty or malformed request, rejected
// synchronously with no side effects.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// NotFoundError reports a name absent from the directory or booking table.
type NotFoundError struct {
	Kind string // "device", "port", "power reading"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// OwnershipConflict names a device booked by users other than the requester.
type OwnershipConflict struct {
	Device string
	Owners []string
}

func (c OwnershipConflict) String() string {
	return fmt.Sprintf("%s (owned by %s)", c.Device, strings.Join(c.Owners, ","))
}

// AuthorizationError reports that a request referenced devices the acting
// user may not operate. Never retried automatically. Missing lists devices
// absent from the directory; Conflicts lists devices booked by other users.
type AuthorizationError struct {
	User      string
	Missing   []string
	Conflicts []OwnershipConflict
}

func (e *AuthorizationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "unknown devices: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Conflicts) > 0 {
		cs := make([]string, len(e.Conflicts))
		for i, c := range e.Conflicts {
			cs[i] = c.String()
		}
		parts = append(parts, "devices booked by others: "+strings.Join(cs, ", "))
	}
	if len(parts) == 0 {
		parts = append(parts, "no devices in conflict")
	}
	return fmt.Sprintf("user %q not authorized: %s", e.User, strings.Join(parts, "; "))
}

// SafetyLimitError reports a measured optical power above the destination
// device's configured ceiling. It aborts the whole batch.
type SafetyLimitError struct {
	Source      string
	Destination string
	SourcePort  int
	MeasuredDbm float64
	LimitDbm    float64
}

func (e *SafetyLimitError) Error() string {
	return fmt.Sprintf("unsafe power on %s -> %s: %.2f dBm at port %d exceeds limit %.2f dBm",
		e.Source, e.Destination, e.MeasuredDbm, e.SourcePort, e.LimitDbm)
}

// BackendError reports that the switch or the registry is unreachable or
// returned a protocol fault. Distinct from policy rejections: callers may
// retry after backoff, the core never retries on its own.
type BackendError struct {
	System string // "switch", "registry"
	Op     string
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %s: %v", e.System, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NotSupportedError signals that a driver lacks a capability. It is returned
// synchronously from the unsupported call; no driver panics or raises to
// signal an unsupported feature.
type NotSupportedError struct {
	Driver string
	Op     string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s driver does not support %s", e.Driver, e.Op)
}

// Matching helpers. These follow errors.As so wrapped errors match too.

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsAuthorization(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

func IsSafetyLimit(err error) bool {
	var e *SafetyLimitError
	return errors.As(err, &e)
}

func IsBackend(err error) bool {
	var e *BackendError
	return errors.As(err, &e)
}

func IsNotSupported(err error) bool {
	var e *NotSupportedError
	return errors.As(err, &e)
}

// IsRecoverable reports whether the caller may usefully retry after backoff.
// Only backend faults qualify; policy rejections will fail again unchanged.
func IsRecoverable(err error) bool {
	return IsBackend(err)
}
