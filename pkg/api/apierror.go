// Package api provides the flat {"detail": "<message>"} JSON error
// envelope used across the HTTP surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// WriteError writes status with the given detail message.
func WriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Detail: detail})
}

// WriteJSON writes status with an arbitrary JSON body.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "missing or invalid API key"
	}
	WriteError(w, http.StatusUnauthorized, detail)
}

func WriteForbidden(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "insufficient role"
	}
	WriteError(w, http.StatusForbidden, detail)
}

func WriteNotFound(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusNotFound, detail)
}

func WriteTooLarge(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "request body exceeds the configured size cap"
	}
	WriteError(w, http.StatusRequestEntityTooLarge, detail)
}

func WriteUnprocessable(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusUnprocessableEntity, detail)
}

// WriteDecodeError reports a request body decode failure as 413 when it
// was caused by the http.MaxBytesReader limit, or 422 otherwise.
func WriteDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteTooLarge(w, "")
		return
	}
	WriteUnprocessable(w, "invalid JSON body: "+err.Error())
}

func WriteTooManyRequests(w http.ResponseWriter, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

func WriteInternal(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "internal error"
	}
	WriteError(w, http.StatusInternalServerError, detail)
}
