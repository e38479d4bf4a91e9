package httpjson

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
)

type errorBody struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func WriteMessage(w http.ResponseWriter, status int, message, details string) {
	Write(w, status, errorBody{Message: message, Details: details})
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.Invalid:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InsufficientStock, apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err. Faults are logged and hidden behind a generic message.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := StatusOf(kind)
	if kind == apperr.Fault {
		log.Error("request failed", "err", err)
		WriteMessage(w, status, "internal server error", "")
		return
	}
	WriteMessage(w, status, err.Error(), kind.String())
}

func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.Invalid, "invalid body", err)
	}
	return nil
}
