// Package response provides the HTTP response helpers of the biorecords
// API. Detail and create endpoints write the record itself, list endpoints
// write a Page and failures write an error envelope.
package response

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/biorecords/biorecords/pkg/errors"
)

// ErrorBody is the envelope written for every failed request.
type ErrorBody struct {
	Error *Error `json:"error"`
}

// Error represents an API error with code, message, and optional details.
// Details is always an object: field names for validation errors, a
// "reason" otherwise.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Reason returns details carrying a single explanation.
func Reason(reason string) map[string]string {
	return map[string]string{"reason": reason}
}

// Page is one page of a list endpoint.
type Page struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// NewPage builds a page of results for the request r. Next and previous
// links keep every query parameter of r and move the offset.
func NewPage(r *http.Request, results any, total, limit, offset int) Page {
	p := Page{Count: total, Results: results}
	if limit <= 0 {
		return p
	}
	link := func(off int) *string {
		u := url.URL{Path: r.URL.Path}
		q := r.URL.Query()
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(off))
		u.RawQuery = q.Encode()
		s := u.String()
		return &s
	}
	if offset+limit < total {
		p.Next = link(offset + limit)
	}
	if offset > 0 {
		p.Previous = link(max(offset-limit, 0))
	}
	return p
}

// Fail creates an error envelope.
func Fail(code, message string, details map[string]string) ErrorBody {
	return ErrorBody{Error: &Error{Code: code, Message: message, Details: details}}
}

// JSON writes v as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Encoding errors are ignored as headers are already sent (best effort)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with 200 status.
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// Created writes v with 201 status.
func Created(w http.ResponseWriter, v any) {
	JSON(w, http.StatusCreated, v)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message string, details map[string]string) {
	JSON(w, http.StatusBadRequest, Fail("BAD_REQUEST", message, details))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message string, details map[string]string) {
	JSON(w, http.StatusUnauthorized, Fail("UNAUTHORIZED", message, details))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message string, details map[string]string) {
	JSON(w, http.StatusNotFound, Fail("NOT_FOUND", message, details))
}

// MethodNotAllowed writes a 405 error response.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(
		"METHOD_NOT_ALLOWED",
		"Method not allowed",
		Reason("Method "+method+" is not supported for this endpoint"),
	))
}

// Conflict writes a 409 error response.
func Conflict(w http.ResponseWriter, message string, details map[string]string) {
	JSON(w, http.StatusConflict, Fail("CONFLICT", message, details))
}

// RateLimited writes a 429 error response.
func RateLimited(w http.ResponseWriter, message string) {
	JSON(w, http.StatusTooManyRequests, Fail(
		"RATE_LIMITED",
		"Rate limit exceeded",
		Reason(message),
	))
}

// InternalError writes a 500 error response. The error itself is logged by
// the caller and never exposed to the client.
func InternalError(w http.ResponseWriter, _ error) {
	JSON(w, http.StatusInternalServerError, Fail(
		"INTERNAL_ERROR",
		"Internal server error",
		Reason("An unexpected error occurred"),
	))
}

// ServiceUnavailable writes a 503 error response.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	JSON(w, http.StatusServiceUnavailable, Fail(
		"SERVICE_UNAVAILABLE",
		"Service unavailable",
		Reason(message),
	))
}

// validationDetails returns the field map of a validation error.
func validationDetails(err error) map[string]string {
	var v *errors.ValidationError
	if !errors.As(err, &v) || v.Field == "" {
		return nil
	}
	return map[string]string{v.Field: v.Message}
}

// ErrorFromType maps typed errors to HTTP responses: missing records are
// 404, invalid input 400, conflicts and duplicates 409, anything else 500.
func ErrorFromType(w http.ResponseWriter, err error) {
	switch {
	case errors.IsNotFound(err):
		NotFound(w, err.Error(), nil)
	case errors.IsValidationError(err):
		BadRequest(w, err.Error(), validationDetails(err))
	case errors.IsConflict(err), errors.IsAlreadyExists(err):
		Conflict(w, err.Error(), nil)
	default:
		InternalError(w, err)
	}
}

// StatusFor returns the status ErrorFromType would write for err.
func StatusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsValidationError(err):
		return http.StatusBadRequest
	case errors.IsConflict(err), errors.IsAlreadyExists(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
