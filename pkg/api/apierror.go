// Package api exposes the engine's command/query surface over HTTP JSON,
// with RFC 7807 Problem Detail error responses.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/optoutdao/engine/pkg/engine"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Kind is the engine's error category, when the failure came from a
	// command or query.
	Kind string `json:"kind,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, &ProblemDetail{
		Type:   fmt.Sprintf("https://optoutdao.org/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeProblem(w http.ResponseWriter, problem *ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteEngineError maps an engine error kind to an HTTP status and writes
// the problem response.
func WriteEngineError(w http.ResponseWriter, err error) {
	kind := engine.KindOf(err)
	status := http.StatusInternalServerError
	title := "Internal Server Error"
	switch kind {
	case engine.KindValidation:
		status, title = http.StatusBadRequest, "Bad Request"
	case engine.KindPrecondition:
		status, title = http.StatusConflict, "Conflict"
	case engine.KindAuthorization:
		status, title = http.StatusForbidden, "Forbidden"
	case engine.KindNotFound:
		status, title = http.StatusNotFound, "Not Found"
	case engine.KindHalted:
		status, title = http.StatusServiceUnavailable, "Engine Halted"
	}
	detail := err.Error()
	if status == http.StatusInternalServerError {
		// Log internally but never expose to the client.
		slog.Error("internal server error", "error", err)
		detail = "An unexpected error occurred. Please try again later."
	}
	writeProblem(w, &ProblemDetail{
		Type:   fmt.Sprintf("https://optoutdao.org/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
		Kind:   string(kind),
	})
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail)
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
}

// WriteTooManyRequests writes a 429 error response with Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteError(w, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded. Retry after the specified interval.")
}
