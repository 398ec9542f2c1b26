package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blue-scarf/paystamp/internal/common"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

// statusFor maps sentinel kinds onto HTTP statuses. Anything unmapped is a
// 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, common.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED"
	case errors.Is(err, common.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, common.ErrUnavailable):
		return http.StatusBadGateway, "COLLABORATOR_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
