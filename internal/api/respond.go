package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
	"github.com/darts-scorer/internal/session"
)

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write response")
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, map[string]string{"error": msg})
}

// respondEngineError maps a session or engine error to a status code. Rule violations are
// logged at debug level.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		respondError(w, r, status, "internal error")
		return
	}
	log.Ctx(r.Context()).Debug().Err(err).Int("status", status).Msg("request rejected")
	respondError(w, r, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, match.ErrNotPlaying),
		errors.Is(err, match.ErrNoThrows),
		errors.Is(err, match.ErrNoPendingLeg),
		errors.Is(err, match.ErrNoPendingMatch),
		errors.Is(err, match.ErrMatchFinished),
		errors.Is(err, match.ErrConfirmationRequired):
		return http.StatusConflict
	case errors.Is(err, session.ErrDigitRejected):
		return http.StatusBadRequest
	}

	var gameErr *match.GameError
	if errors.As(err, &gameErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
