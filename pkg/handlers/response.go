package handlers

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes bounds request bodies read by handlers.
const maxBodyBytes = 1 << 20

// ErrorResponse writes {"error": message} and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// ErrorWithDetails writes {"error": message, "details": err.Error()}.
func ErrorWithDetails(w http.ResponseWriter, statusCode int, message string, err error) error {
	body := map[string]string{"error": message}
	if err != nil {
		body["details"] = err.Error()
	}
	return WriteJSON(w, statusCode, body)
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteRawJSON writes an already-encoded JSON body.
func WriteRawJSON(w http.ResponseWriter, statusCode int, body []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err := w.Write(body)
	return err
}
