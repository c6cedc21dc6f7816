package validate

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteError answers 400 with a JSON body naming the offending field.
// Anything that is not a ValidationError is reported as a calculation error.
func WriteError(w http.ResponseWriter, err error) {
	body := errorBody{Error: "calculation error"}
	if ve, ok := As(err); ok {
		body = errorBody{Error: ve.Error(), Field: ve.Field}
	}
	WriteJSON(w, http.StatusBadRequest, body)
}

func WriteBadPayload(w http.ResponseWriter) {
	WriteJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request payload"})
}

// WriteJSON encodes v before committing status, so an unencodable value
// becomes a 500 instead of a header with an empty body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Encoding error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(b, '\n'))
}
