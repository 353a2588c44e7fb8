// Package problem models RFC 7807 style problem-detail responses and the two
// domain error kinds the API distinguishes.
//
// Handlers never build status codes from error values directly; they call
// StatusFor, which maps a tagged error kind to its HTTP status and wire
// shape. Anything StatusFor does not recognise is an infrastructure fault
// and falls back to the generic {code, name, description} payload.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Problem type tags carried in the "type" field of the response body.
const (
	TypeValidation     = "validation-error"
	TypeNoSuchInstance = "no-such-instance-error"
)

// SubError is one field-level failure inside a validation Problem. Pointer
// names the offending input field when it is known.
type SubError struct {
	Detail     string
	Pointer    string
	Extensions map[string]any
}

// MarshalJSON flattens extensions next to the detail and pointer keys so the
// wire shape stays {detail, pointer?, ...ext}.
func (s SubError) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, len(s.Extensions)+2)
	for k, v := range s.Extensions {
		payload[k] = v
	}
	payload["detail"] = s.Detail
	if s.Pointer != "" {
		payload["pointer"] = s.Pointer
	}
	return json.Marshal(payload)
}

// Problem is a serializable problem-detail body. It is constructed only at
// error time and written immediately; it is never persisted.
type Problem struct {
	Type       string
	Title      string
	Errors     []SubError
	Extensions map[string]any
}

// MarshalJSON produces {type, title, errors?, ...ext}. The errors key is
// omitted when no sub-errors were collected.
func (p Problem) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, len(p.Extensions)+3)
	for k, v := range p.Extensions {
		payload[k] = v
	}
	payload["type"] = p.Type
	payload["title"] = p.Title
	if len(p.Errors) > 0 {
		payload["errors"] = p.Errors
	}
	return json.Marshal(payload)
}

const defaultValidationTitle = "The request data was not valid."

// ValidationError reports request data that failed structural validation, a
// business rule, or a uniqueness constraint. Errors carries zero or more
// field-level sub-errors for client diagnosis.
type ValidationError struct {
	Title  string
	Errors []SubError
}

func (e *ValidationError) Error() string { return e.Title }

// NewValidation builds a ValidationError with a single human-readable title
// and no sub-errors. An empty title falls back to the generic one.
func NewValidation(title string) *ValidationError {
	if title == "" {
		title = defaultValidationTitle
	}
	return &ValidationError{Title: title}
}

// NewValidationDetailed builds a ValidationError carrying field-level
// sub-errors under the generic title.
func NewValidationDetailed(subErrors ...SubError) *ValidationError {
	return &ValidationError{Title: defaultValidationTitle, Errors: subErrors}
}

// NotFoundError reports a lookup by id or session_id with no matching
// record.
type NotFoundError struct {
	Title string
}

func (e *NotFoundError) Error() string { return e.Title }

// NewNotFound builds a NotFoundError with the given title.
func NewNotFound(title string) *NotFoundError {
	if title == "" {
		title = "No such instance of the entity was found."
	}
	return &NotFoundError{Title: title}
}

// StatusFor maps a domain error to its HTTP status and problem body. The
// third return is false when the error is not one of the domain kinds and
// should surface through the generic fallback instead.
func StatusFor(err error) (int, Problem, bool) {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, Problem{
			Type:   TypeValidation,
			Title:  validation.Title,
			Errors: validation.Errors,
		}, true
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound, Problem{
			Type:  TypeNoSuchInstance,
			Title: notFound.Title,
		}, true
	}
	return 0, Problem{}, false
}

// Generic is the fallback body for errors outside the two domain kinds,
// matching the framework-level {code, name, description} shape.
type Generic struct {
	Code        int    `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewGeneric fills the name from the standard status text.
func NewGeneric(status int, description string) Generic {
	return Generic{Code: status, Name: http.StatusText(status), Description: description}
}
