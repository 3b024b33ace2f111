// Package httputil centralizes JSON response and error envelope writing so
// every handler emits the same shapes.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "gatepass/pkg/domain-errors"
)

// ErrorEnvelope is the JSON body returned for failed requests.
// Description is omitted for internal errors so storage details never leak.
// MissingFields carries the exact field identifiers a validation error names.
// Terminal tells clients not to offer a retry affordance.
type ErrorEnvelope struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	MissingFields    []string `json:"missing_fields,omitempty"`
	Terminal         bool     `json:"terminal,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into an HTTP error envelope.
// Uncoded errors are treated as internal.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	env := ErrorEnvelope{
		Error:    string(code),
		Terminal: dErrors.IsTerminal(err),
	}
	if code != dErrors.CodeInternal {
		env.ErrorDescription = dErrors.MessageOf(err)
		env.MissingFields = dErrors.FieldsOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), env)
}
