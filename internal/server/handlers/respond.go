package handlers

import (
	"encoding/json"
	"net/http"
)

var defaultHTTPErrorResponder = func(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": "INTERNAL_ERROR", "message": err.Error()},
	})
}

var httpErrorResponder = defaultHTTPErrorResponder

// SetHTTPErrorResponder lets the server package inject the centralized error
// handler; handlers cannot import it without a cycle.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default responder (useful for tests).
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultHTTPErrorResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}

// dataResponse is the success envelope for API routes.
type dataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func respondWithData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dataResponse{Success: true, Data: data})
}
