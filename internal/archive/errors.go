package archive

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("archive: not found")
	ErrRestricted        = errors.New("archive: restricted, login required")
	ErrTransport         = errors.New("archive: transport failure")
	ErrFormatUnavailable = errors.New("archive: download format unavailable")
)

// ExtractionError means a required field was missing from a page or could
// not be parsed, usually because the page structure changed or its content
// is inaccessible.
type ExtractionError struct {
	// Entity is what was being extracted, "work", "work blurb" or "series".
	Entity string
	Id     string
	Field  string
	Err    error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	b.WriteString("extract ")
	b.WriteString(e.Entity)
	if e.Id != "" {
		fmt.Fprintf(&b, " %s", e.Id)
	}
	fmt.Fprintf(&b, ": %s", e.Field)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %s", e.Err.Error())
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

var errMissingElement = errors.New("element not found")

// PartialError is returned alongside a partial result when failures were
// skipped instead of aborting the whole operation.
type PartialError struct {
	Errs []error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d item(s) failed: %s", len(e.Errs), errors.Join(e.Errs...).Error())
}

func (e *PartialError) Unwrap() []error {
	return e.Errs
}
