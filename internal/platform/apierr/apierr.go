// Package apierr carries an HTTP status and a stable error code through layers
// that do not depend on gin.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("api error (%d)", e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}

// NotFound names the missing resource, e.g. NotFound("presentation").
func NotFound(resource string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "not_found", Message: resource + " not found"}
}

// StatusOf returns the status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Status
	}
	return 0
}
