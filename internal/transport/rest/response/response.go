// Package response writes the jam-service JSON envelopes.
//
//	success: {"data": ...}
//	list:    {"data": {"items": [...], "count": n}}
//	failure: {"error": {"code", "message", "meta", "request_id"}}
package response

import (
	"encoding/json"
	"net/http"
)

type Envelope struct {
	Data any `json:"data"`
}

// Page is the list shape. Items is never null on the wire.
type Page[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Data(w http.ResponseWriter, status int, payload any) {
	write(w, status, Envelope{Data: payload})
}

// Items writes a 200 list response.
func Items[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	Data(w, http.StatusOK, Page[T]{Items: items, Count: len(items)})
}

func Fail(w http.ResponseWriter, status int, p ErrorPayload) {
	write(w, status, ErrorBody{Error: p})
}
