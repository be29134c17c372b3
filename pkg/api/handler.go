package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

// HandlerFunc defines a handler that returns an error for clean error handling
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// HandleError wraps an error-returning HandlerFunc into a standard
// http.HandlerFunc, translating the indexer error taxonomy to HTTP statuses.
func HandleError(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeError(w, err)
		}
	}
}

type errorResponse struct {
	ErrMsg     string `json:"error"`
	ErrMsgCode int    `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "Unexpected Service Error"

	var e *tdherr.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case tdherr.KindValidation:
			status = http.StatusBadRequest
			message = e.Error()
		case tdherr.KindRateLimited:
			status = http.StatusTooManyRequests
			message = e.Error()
		case tdherr.KindStoreLocked:
			status = http.StatusServiceUnavailable
			message = e.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&errorResponse{ErrMsg: message, ErrMsgCode: status})
}

func writeJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// notFound writes a JSON 404.
func notFound(w http.ResponseWriter, message string) error {
	return writeJSON(w, http.StatusNotFound, &errorResponse{
		ErrMsg:     message,
		ErrMsgCode: http.StatusNotFound,
	})
}
