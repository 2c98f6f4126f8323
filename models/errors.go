package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is wrapped by every entity specific not-found error so callers
// can test for a missing record without caring which one.
var ErrNotFound = errors.New("not found")

var (
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrReviewNotFound   = fmt.Errorf("review %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)

	// ErrCategoryInUse is returned when deleting a category that products
	// still point at.
	ErrCategoryInUse = errors.New("category is referenced by products")

	// ErrDuplicate is returned when the store rejects a row because of a
	// unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// ValidationErrors maps a field name to its error messages. The empty key
// holds errors that do not belong to a single field.
type ValidationErrors map[string][]string

// NonFieldErrors is the key used for errors that are not tied to a field.
const NonFieldErrors = "non_field_errors"

func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v ValidationErrors) Merge(other ValidationErrors) {
	for field, msgs := range other {
		v[field] = append(v[field], msgs...)
	}
}

// First returns the first message recorded for field.
func (v ValidationErrors) First(field string) string {
	if msgs := v[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Err returns v as an error, or nil when nothing was recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v[f], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into ValidationErrors when it carries them.
func AsValidation(err error) (ValidationErrors, bool) {
	var verr ValidationErrors
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}
