package api

import (
	"encoding/json"
	"net/http"

	"pathwatch/internal/logging"
)

type apiError struct {
	Status  int
	Message string
}

type apiHandler func(http.ResponseWriter, *http.Request) *apiError

type errorResponse struct {
	Error string `json:"error"`
}

const cacheControlNoStore = "no-store, must-revalidate"

func restHandler(next apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("Cache-Control", cacheControlNoStore)
		if err := next(w, r); err != nil {
			writeJSON(w, err.Status, errorResponse{Error: err.Message})
		}
	}
}

func loggingMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logger != nil {
			logger.Debug("api request", map[string]string{
				"method": r.Method,
				"path":   r.URL.Path,
			})
		}
		next.ServeHTTP(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter, allow string) *apiError {
	w.Header().Set("Allow", allow)
	return &apiError{Status: http.StatusMethodNotAllowed, Message: "method not allowed"}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
