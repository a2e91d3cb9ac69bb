package submission

import (
	"errors"
	"fmt"
)

// ErrInvalidSubmission is matched by every error the parser/validator returns.
// A submission failing with it never reaches a store.
var ErrInvalidSubmission = errors.New("invalid submission")

type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required section %q", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrInvalidSubmission }

type MalformedPayloadError struct {
	Err error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("payload is not valid JSON: %v", e.Err)
}

func (e *MalformedPayloadError) Is(target error) bool { return target == ErrInvalidSubmission }

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

type UnknownActionError struct {
	Kind string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action type %q (use: %s, %s)", e.Kind, KindPublishLevel, KindDeleteLevel)
}

func (e *UnknownActionError) Is(target error) bool { return target == ErrInvalidSubmission }

// ValidationError reports a payload that is valid JSON but has the wrong shape
// for its action kind.
type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %s", e.Kind, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSubmission }
