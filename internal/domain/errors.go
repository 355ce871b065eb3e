package domain

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindInactive    Kind = "inactive"
	KindTransient   Kind = "transient"
	KindConsistency Kind = "consistency_violation"
	KindValidation  Kind = "validation_error"
)

type Code string

const (
	CodeEventNotFound          Code = "EVENT_NOT_FOUND"
	CodeUserNotFound           Code = "USER_NOT_FOUND"
	CodeEventInactive          Code = "EVENT_INACTIVE"
	CodeAlreadyRegistered      Code = "ALREADY_REGISTERED"
	CodeEventFull              Code = "EVENT_FULL"
	CodeCapacityBelowReserved  Code = "CAPACITY_BELOW_RESERVED"
	CodeStoreUnavailable       Code = "STORE_UNAVAILABLE"
	CodeReservedOutOfBounds    Code = "RESERVED_OUT_OF_BOUNDS"
	CodeInvalidCriteria        Code = "INVALID_CRITERIA"
	CodeRadiusWithoutCenter    Code = "RADIUS_WITHOUT_CENTER"
	CodeInvalidEvent           Code = "INVALID_EVENT"
	CodeInvalidRegistrationArg Code = "INVALID_ARGUMENT"
)

// Error is the typed error returned by every registry and store operation.
// errors.Is matches on Code, so wrapped sentinels keep their identity.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Meta    map[string]string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if len(e.Meta) > 0 {
		msg = fmt.Sprintf("%s (%v)", msg, e.Meta)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrEventNotFound     = &Error{Kind: KindNotFound, Code: CodeEventNotFound, Message: "event not found"}
	ErrUserNotFound      = &Error{Kind: KindNotFound, Code: CodeUserNotFound, Message: "user not found"}
	ErrEventInactive     = &Error{Kind: KindInactive, Code: CodeEventInactive, Message: "event is closed to registration"}
	ErrAlreadyRegistered = &Error{Kind: KindConflict, Code: CodeAlreadyRegistered, Message: "user already registered for event"}
	ErrEventFull         = &Error{Kind: KindConflict, Code: CodeEventFull, Message: "event is full"}

	ErrCapacityBelowReserved = &Error{Kind: KindConflict, Code: CodeCapacityBelowReserved, Message: "max capacity below reserved seats"}
	ErrRadiusWithoutCenter   = &Error{Kind: KindValidation, Code: CodeRadiusWithoutCenter, Message: "radius requires a center coordinate"}
	ErrInvalidCriteria       = &Error{Kind: KindValidation, Code: CodeInvalidCriteria, Message: "invalid filter criteria"}
	ErrInvalidEvent          = &Error{Kind: KindValidation, Code: CodeInvalidEvent, Message: "invalid event"}
	ErrInvalidArgument       = &Error{Kind: KindValidation, Code: CodeInvalidRegistrationArg, Message: "invalid argument"}
	ErrStoreUnavailable      = &Error{Kind: KindTransient, Code: CodeStoreUnavailable, Message: "store unavailable"}
	ErrConsistencyViolation  = &Error{Kind: KindConsistency, Code: CodeReservedOutOfBounds, Message: "reserved seats out of bounds"}
)

// ErrCacheMiss is returned by cache adapters; it never leaves the service layer.
var ErrCacheMiss = errors.New("cache miss")

// Transient wraps a store failure that is safe to retry.
func Transient(op string, err error) error {
	return &Error{
		Kind:    KindTransient,
		Code:    CodeStoreUnavailable,
		Message: op,
		Err:     err,
	}
}

// ConsistencyViolation reports reserved outside [0, maxCapacity].
func ConsistencyViolation(eventID string, reserved, maxCapacity int) error {
	return &Error{
		Kind:    KindConsistency,
		Code:    CodeReservedOutOfBounds,
		Message: "reserved seats out of bounds",
		Meta: map[string]string{
			"event_id":     eventID,
			"reserved":     fmt.Sprint(reserved),
			"max_capacity": fmt.Sprint(maxCapacity),
		},
	}
}

func ValidationMeta(code Code, msg string, meta map[string]string) error {
	return &Error{Kind: KindValidation, Code: code, Message: msg, Meta: meta}
}

// KindOf returns the kind of the first *Error in the chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of the first *Error in the chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// AsError returns the first *Error in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
