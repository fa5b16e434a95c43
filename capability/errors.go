package capability

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	// KindAuthorization means the invocation is well-formed but not permitted.
	KindAuthorization Kind = "Authorization"
	// KindSchema means a capability is malformed.
	KindSchema Kind = "Schema"
)

// Stable error names. Callers branch on Name, not on Message.
const (
	NameMissingClaimCaveat = "MissingClaimCaveat"
	NameMissingProofCaveat = "MissingProofCaveat"
	NameMismatchedCaveat   = "MismatchedCaveat"
	NameResourceMismatch   = "ResourceMismatch"
	NameAbilityMismatch    = "AbilityMismatch"
	NameAudienceMismatch   = "AudienceMismatch"
	NameInvalidCaveat      = "InvalidCaveat"
	NameInvalidResource    = "InvalidResource"
	NameUnknownAbility     = "UnknownAbility"
	NameNoProof            = "NoProof"
)

// Error is the structured authorization failure. Message is for humans.
type Error struct {
	Kind    Kind
	Name    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func authError(name, format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Name: name, Message: fmt.Sprintf(format, args...)}
}

func schemaError(name string, cause error, format string, args ...any) error {
	return &Error{Kind: KindSchema, Name: name, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ErrorName returns the Name of a structured error, or "" if err is not one.
func ErrorName(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Name
}
