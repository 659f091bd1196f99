// Package http exposes the reconciliation engine as a JSON API.
//
// This file holds the response builder and the mapping from domain errors
// to HTTP status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/services"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a builder with a 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes headers only.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error        string `json:"error"`
	Code         string `json:"code"`
	Precondition string `json:"precondition,omitempty"`
	Payout       any    `json:"payout,omitempty"`
}

// ErrorResponse maps err to a status and an error body.
//
//	validation          -> 422
//	not found           -> 404
//	precondition        -> 409
//	invalid transition  -> 409
//	forbidden           -> 403
//	anything else       -> 500
func ErrorResponse(err error) *ResponseBuilder {
	status, code := classify(err)
	body := ErrorBody{Error: err.Error(), Code: code}

	var pe *core.PreconditionError
	if errors.As(err, &pe) {
		body.Precondition = pe.Precondition
	}
	if status == http.StatusInternalServerError {
		// Store and broker details stay in the logs.
		body.Error = http.StatusText(status)
	}
	return NewResponse().Status(status).JSON(body)
}

func classify(err error) (int, string) {
	var bad *requestError
	switch {
	case errors.As(err, &bad):
		return bad.status, bad.code
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidScope),
		errors.Is(err, core.ErrInactiveMember):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrPrecondition):
		return http.StatusConflict, "precondition_failed"
	case errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, core.ErrPayoutUnavailable):
		return http.StatusInternalServerError, "payout_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// fail logs server-side failures and writes the mapped error response.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).LogError(r.Context(), "Request failed", err, op, nil)
	}
	resp.Write(w)
}
