package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/chineduo/solarhub/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func okPage(w http.ResponseWriter, data any, total int64, page, pageSize int) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"meta":    map[string]any{"total": total, "page": page, "page_size": pageSize},
	})
}

// fail maps domain errors onto the status codes the storefront relies on.
// Validation problems carry their field map; everything unexpected is a
// bare 500 with the detail kept server-side.
func fail(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"message": "validation failed",
			"errors":  ve.Fields,
		})
		return
	}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInsufficientStock):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrSignatureMismatch):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrExpiredToken):
		status = http.StatusGone
	case errors.Is(err, domain.ErrMalformedSession):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrGatewayFailure):
		status = http.StatusBadGateway
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		message = "internal error"
	}
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		return &domain.ValidationError{Fields: map[string]string{"body": "malformed JSON"}}
	}
	return nil
}
