package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the success body: {"status":"success", "token"?, "data"?, "message"?}.
type Envelope struct {
	Status  string `json:"status"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
// It sets Content-Type to application/json; charset=utf-8 if not already set.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 success envelope around data.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Status: "success", Data: data})
}

// Created writes a 201 success envelope carrying a session token and data.
func Created(w http.ResponseWriter, token string, data any) {
	WriteJSON(w, http.StatusCreated, Envelope{Status: "success", Token: token, Data: data})
}

// Token writes a 200 success envelope carrying a session token.
func Token(w http.ResponseWriter, token string) {
	WriteJSON(w, http.StatusOK, Envelope{Status: "success", Token: token})
}

// Message writes a 200 success envelope carrying a message.
func Message(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusOK, Envelope{Status: "success", Message: msg})
}

// NoContent writes a 204 response with no body.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
