package core

import (
	"errors"
	"net/http"
)

// ProblemDocument models the error envelope of API responses.
type ProblemDocument struct {
	Status  int            `json:"status"`
	Error   string         `json:"error"`
	Details string         `json:"details,omitempty"`
	Code    string         `json:"code,omitempty"`
	Extras  map[string]any `json:"extras,omitempty"`
}

// NewProblem builds a problem document for status with an optional cause.
func NewProblem(status int, code string, err error) ProblemDocument {
	doc := ProblemDocument{
		Status: status,
		Error:  http.StatusText(status),
		Code:   code,
	}
	if err != nil {
		doc.Details = err.Error()
		var e *Error
		if errors.As(err, &e) && len(e.Details) > 0 {
			doc.Extras = e.Details
		}
	}
	return doc
}

// StatusFor maps a failure kind to the HTTP status used when it is reported
// synchronously.
func StatusFor(kind Kind) int {
	switch kind {
	case FetchFailure:
		return http.StatusBadGateway
	case StructureNotFound, MalformedResponse:
		return http.StatusUnprocessableEntity
	case CompileFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
