package services

import (
	"errors"
	"fmt"
)

// Generation error taxonomy. Handlers map these to HTTP statuses.
var (
	ErrInvalidRequest         = errors.New("invalid request data")
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrTemporarilyUnavailable = errors.New("model is currently loading, please try again in a few seconds")
	ErrUpstreamUnauthorized   = errors.New("invalid inference API key")
	ErrUpstreamBadResponse    = errors.New("unexpected response format from inference API")
	ErrUpstreamFailed         = errors.New("image generation failed")
	ErrNotFound               = errors.New("not found")
	ErrInternal               = errors.New("internal server error")
)

// GenerationError is the error returned by Generator.Generate. Err is one of
// the taxonomy sentinels; Detail carries upstream text or a configuration
// hint; Fields is set for ErrInvalidRequest.
type GenerationError struct {
	Err    error
	Detail string
	Fields []FieldError
	cause  error
}

func (e *GenerationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Cause returns the underlying error that triggered e, if any.
func (e *GenerationError) Cause() error {
	return e.cause
}

func genError(kind error, detail string, cause error) *GenerationError {
	return &GenerationError{Err: kind, Detail: detail, cause: cause}
}
