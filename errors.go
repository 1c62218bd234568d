package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/andre-gcosta/App-Gestao-de-Eventos/extract"
)

// ErrorKind is the closed set of failures the API can report. Every kind is
// mapped to a status in httpStatus; adding a kind without a mapping is a bug.
type ErrorKind int

const (
	KindAuthenticationRequired ErrorKind = iota
	KindAuthorizationDenied
	KindNotFound
	KindValidation
	KindRateLimitExceeded
	KindExtractionParse
	KindDateResolution
	KindUpstreamTimeout
	KindInternal
)

type apiError struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *apiError) Unwrap() error { return e.cause }

func fail(kind ErrorKind, msg string) *apiError {
	return &apiError{Kind: kind, Message: msg}
}

func failWrap(kind ErrorKind, msg string, cause error) *apiError {
	return &apiError{Kind: kind, Message: msg, cause: cause}
}

func httpStatus(kind ErrorKind) int {
	switch kind {
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindAuthorizationDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	case KindExtractionParse, KindDateResolution:
		return http.StatusUnprocessableEntity
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// classifyExtraction collapses extractor failures into user-facing kinds.
// Parse and date failures deliberately share one message so internal detail
// never leaks to the client.
func classifyExtraction(err error) *apiError {
	const userMsg = "could not create event from this text"

	var perr *extract.ParseError
	if errors.As(err, &perr) {
		return failWrap(KindExtractionParse, userMsg, err)
	}
	var derr *extract.DateResolutionError
	if errors.As(err, &derr) {
		return failWrap(KindDateResolution, userMsg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failWrap(KindUpstreamTimeout, "the assistant took too long, try again", err)
	}
	return failWrap(KindInternal, "internal error", err)
}

func writeError(w http.ResponseWriter, err error) {
	var aerr *apiError
	if !errors.As(err, &aerr) {
		aerr = failWrap(KindInternal, "internal error", err)
	}
	if aerr.Kind == KindInternal && aerr.cause != nil {
		log.Printf("internal error: %v", aerr.cause)
	}
	writeJSON(w, httpStatus(aerr.Kind), map[string]string{"error": aerr.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
