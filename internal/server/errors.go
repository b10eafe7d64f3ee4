// Package server provides the HTTP API for group recommendations.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/group-harmony/internal/pipeline"
)

// Messages for failures detected before the pipeline runs.
const (
	MsgMethodNotAllowed = "Only POST requests are allowed."
	MsgMissingBody      = "Missing request body."
	MsgInvalidJSON      = "Invalid JSON in request body."
	MsgInternal         = "Internal server error"
)

// ErrBadRequestBody indicates the request body is absent or not valid JSON.
type ErrBadRequestBody struct {
	Message string
	Cause   error
}

func (e *ErrBadRequestBody) Error() string {
	return e.Message
}

func (e *ErrBadRequestBody) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		badBody    *ErrBadRequestBody
		validation *pipeline.ValidationError
		notFound   *pipeline.NotFoundError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &badBody), errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text shown to the caller for err.
func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgInternal
}
