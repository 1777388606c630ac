package school

import (
	"fmt"
	"sort"
	"strings"
)

// FieldErrors maps a form field name to the message shown next to it.
// An empty FieldErrors means the form is valid.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UploadError means the object store rejected the image; no record was inserted.
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload image %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// InsertError means the record store rejected the new school. An image
// uploaded before the insert is left in place.
type InsertError struct {
	ImageURL string
	Err      error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert school: %v", e.Err)
}

func (e *InsertError) Unwrap() error {
	return e.Err
}

// QueryError means the record store could not list schools.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query schools: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
