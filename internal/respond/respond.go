// Package respond holds the JSON response helpers shared by every handler.
//
// Error bodies are {"message": ..., "code": ..., "errors": {...}}; code and
// errors are omitted when empty. Internal errors are logged and never echoed.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ErrorBody is the JSON shape of every non-2xx response.
type ErrorBody struct {
	Message string              `json:"message"`
	Code    string              `json:"code,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// maxBodyBytes caps request bodies read by DecodeJSON.
const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON value from r's body into dst.
// An empty body is io.EOF; callers decide whether that is acceptable.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response body", "error", err)
	}
}

// OK returns a 200 JSON response with v as the body.
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// Created returns a 201 JSON response with v as the body.
func Created(w http.ResponseWriter, v any) {
	JSON(w, http.StatusCreated, v)
}

// Message returns a 200 {"message": msg} response.
func Message(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusOK, ErrorBody{Message: msg})
}

// NoContent returns an empty 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an ErrorBody with the given status, message and code.
func Error(w http.ResponseWriter, status int, message, code string) {
	JSON(w, status, ErrorBody{Message: message, Code: code})
}

// BadRequest returns a 400 JSON response with the given message.
// Use for undecodable bodies and malformed path/query values.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message, "")
}

// ValidationFailed returns a 400 naming each offending field.
func ValidationFailed(w http.ResponseWriter, fields map[string][]string) {
	JSON(w, http.StatusBadRequest, ErrorBody{
		Message: "validation failed",
		Code:    "validation_error",
		Errors:  fields,
	})
}

// Unprocessable returns a 422 for well-formed input that is inconsistent
// (e.g. an end date before the start date).
func Unprocessable(w http.ResponseWriter, field, message string) {
	JSON(w, http.StatusUnprocessableEntity, ErrorBody{
		Message: message,
		Code:    "unprocessable",
		Errors:  map[string][]string{field: {message}},
	})
}

// Unauthorized returns a 401 JSON response with a machine-readable code.
func Unauthorized(w http.ResponseWriter, message, code string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="mindtrack"`)
	Error(w, http.StatusUnauthorized, message, code)
}

// NotFound returns a 404. Used identically for missing and not-owned resources.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message, "not_found")
}

// Conflict returns a 409 naming the field whose uniqueness was violated.
func Conflict(w http.ResponseWriter, field, message string) {
	JSON(w, http.StatusConflict, ErrorBody{
		Message: message,
		Code:    "conflict",
		Errors:  map[string][]string{field: {message}},
	})
}

// TooManyRequests returns a 429 with Retry-After in whole seconds.
func TooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Round(time.Second).Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	Error(w, http.StatusTooManyRequests, "too many attempts", "rate_limited")
}
