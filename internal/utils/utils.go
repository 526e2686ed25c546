package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RequestIDHeader carries the id the request logger assigns to each request.
const RequestIDHeader = "X-Request-Id"

// ErrorBody is the JSON body of every failed API call.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON encodes v as the response body. Encoding failures are logged
// since the status line has already gone out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON", "status", status, "error", err)
	}
}

// WriteError writes an ErrorBody, echoing the request id already set on the
// response so a client report can be matched against the request log.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{
		Error:     http.StatusText(status),
		Message:   msg,
		RequestID: w.Header().Get(RequestIDHeader),
	})
}

// WriteHTML writes a rendered page or fragment with status 200.
func WriteHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write HTML", "bytes", len(body), "error", err)
	}
}
