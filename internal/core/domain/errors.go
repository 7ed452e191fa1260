package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDiagramNotFound  = errors.New("diagram not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConfiguration    = errors.New("invalid generation options")
	ErrExtraction       = errors.New("text extraction failed")
	ErrMalformedOutput  = errors.New("malformed model output")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

type FieldError struct {
	Field   string
	Message string
}

// DraftValidationError reports a structurally invalid diagram draft. It is a
// permanent, chunk-scoped failure: the draft is discarded rather than saved
// half-formed.
type DraftValidationError struct {
	Fields []FieldError
}

func (e *DraftValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid diagram draft: " + strings.Join(parts, "; ")
}

func (e *DraftValidationError) Unwrap() error { return ErrInvalidInput }
