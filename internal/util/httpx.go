package util

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
)

// APIError represents a structured error response. KmsKeyID names the
// participant key that caused a signature or resolution rejection; it is
// omitted for every other error class.
type APIError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	KmsKeyID string `json:"kms_key_id,omitempty"`
}

// ErrorResponse is the top-level error envelope.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a structured error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error: APIError{Code: code, Message: message},
	})
}

// WriteParticipantError writes a structured error response naming the
// participant key identifier the rejection is about.
func WriteParticipantError(w http.ResponseWriter, status int, code, message, kmsKeyID string) {
	WriteJSON(w, status, ErrorResponse{
		Error: APIError{Code: code, Message: message, KmsKeyID: kmsKeyID},
	})
}

// ParseLimit extracts the limit query parameter with default and max bounds.
func ParseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// ParseCursor decodes the opaque cursor query parameter into the listing
// resume key. Absent or undecodable cursors restart the listing.
func ParseCursor(r *http.Request) string {
	s := r.URL.Query().Get("cursor")
	if s == "" {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return ""
	}
	return string(raw)
}

// EncodeCursor encodes a listing resume key into an opaque cursor string.
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
