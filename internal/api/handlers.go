package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/kafka"
	"github.com/darts-scorer/internal/match"
	"github.com/darts-scorer/internal/session"
	"github.com/darts-scorer/internal/storage"
)

// Archive answers history queries over finished matches
type Archive interface {
	GetLeaderboard(ctx context.Context, limit int) ([]storage.LeaderboardEntry, error)
	GetRecentMatches(ctx context.Context, player string, limit int) ([]storage.FinishedMatch, error)
}

// Analytics exposes the aggregated event stream
type Analytics interface {
	GetMetrics() *kafka.AnalyticsMetrics
	GetPlayer(name string) (kafka.PlayerMetrics, bool)
	SearchPlayers(query string) []kafka.PlayerMetrics
	GetAverageMatchDuration() float64
	GetMatchesPerHour() map[string]int
}

// Handlers holds API handler dependencies
type Handlers struct {
	manager   *session.Manager
	archive   Archive
	analytics Analytics
	kafkaOn   bool
}

// NewHandlers creates a new API handlers instance. archive and analytics may be nil.
func NewHandlers(manager *session.Manager, archive Archive, analytics Analytics, kafkaEnabled bool) *Handlers {
	return &Handlers{
		manager:   manager,
		archive:   archive,
		analytics: analytics,
		kafkaOn:   kafkaEnabled,
	}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Post("/matches", h.OpenMatch)
	r.Route("/matches/{id}", func(r chi.Router) {
		r.Get("/", h.GetMatch)
		r.Post("/throws", h.Throw)
		r.Put("/throws/{player}/{index}", h.EditThrow)
		r.Post("/keypad", h.Keypad)
		r.Post("/back", h.Back)
		r.Post("/leg/confirm", h.ConfirmLeg)
		r.Post("/leg/cancel", h.CancelLeg)
		r.Post("/match/confirm", h.ConfirmMatch)
		r.Post("/match/cancel", h.CancelMatch)
		r.Put("/settings", h.UpdateSettings)
		r.Post("/restart", h.Restart)
		r.Get("/stats", h.GetStats)
		r.Get("/darts/{score}", h.GetCheckoutDarts)
	})

	r.Get("/leaderboard", h.GetLeaderboard)
	r.Get("/history", h.GetHistory)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/analytics/players", h.SearchPlayers)
	r.Get("/analytics/players/{name}", h.GetPlayer)
	r.Get("/status", h.GetStatus)
}

// matchResponse is what every match endpoint returns
type matchResponse struct {
	State   match.State   `json:"state"`
	Input   string        `json:"input"`
	Outcome match.Outcome `json:"outcome,omitempty"`
}

func (h *Handlers) respondMatch(w http.ResponseWriter, r *http.Request, s match.State, outcome match.Outcome) {
	input := ""
	if g, err := h.manager.Get(s.MatchID); err == nil {
		input = g.Input()
	}
	respondJSON(w, r, http.StatusOK, matchResponse{State: s, Input: input, Outcome: outcome})
}

// OpenMatch creates a match or restores a saved one
func (h *Handlers) OpenMatch(w http.ResponseWriter, r *http.Request) {
	var cfg match.Config
	if err := decodeOptional(r, &cfg); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	g, err := h.manager.Open(r.Context(), cfg)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, matchResponse{State: g.GetState(), Input: g.Input()})
}

// GetMatch returns the state of a live match
func (h *Handlers) GetMatch(w http.ResponseWriter, r *http.Request) {
	g, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.respondMatch(w, r, g.GetState(), "")
}

// Throw records a visit
func (h *Handlers) Throw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Score *int `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
		respondError(w, r, http.StatusBadRequest, "score required")
		return
	}

	s, outcome, err := h.manager.Throw(r.Context(), chi.URLParam(r, "id"), *req.Score)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.respondMatch(w, r, s, outcome)
}

// EditThrow replaces a visit of the current leg
func (h *Handlers) EditThrow(w http.ResponseWriter, r *http.Request) {
	player, err1 := strconv.Atoi(chi.URLParam(r, "player"))
	index, err2 := strconv.Atoi(chi.URLParam(r, "index"))
	if err := errors.Join(err1, err2); err != nil {
		respondError(w, r, http.StatusBadRequest, "player and index must be numbers")
		return
	}

	var req struct {
		Value *int `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		respondError(w, r, http.StatusBadRequest, "value required")
		return
	}

	s, err := h.manager.Edit(r.Context(), chi.URLParam(r, "id"), player, index, *req.Value)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.respondMatch(w, r, s, "")
}

// Keypad feeds one key: a digit, "backspace" or "enter"
func (h *Handlers) Keypad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	switch req.Key {
	case "enter":
		s, outcome, err := h.manager.Submit(r.Context(), id)
		if err != nil {
			respondEngineError(w, r, err)
			return
		}
		h.respondMatch(w, r, s, outcome)
		return
	case "backspace":
		if _, err := h.manager.Backspace(id); err != nil {
			respondEngineError(w, r, err)
			return
		}
	default:
		digit, err := strconv.Atoi(req.Key)
		if err != nil || len(req.Key) != 1 {
			respondError(w, r, http.StatusBadRequest, "key must be a digit, backspace or enter")
			return
		}
		if _, err := h.manager.Press(id, digit); err != nil {
			respondEngineError(w, r, err)
			return
		}
	}

	g, err := h.manager.Get(id)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.respondMatch(w, r, g.GetState(), "")
}

// Back undoes the last visit
func (h *Handlers) Back(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.manager.Back)
}

// ConfirmLeg closes the pending leg
func (h *Handlers) ConfirmLeg(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Darts int `json:"darts"`
	}
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.manager.ConfirmLeg(r.Context(), chi.URLParam(r, "id"), req.Darts)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.respondMatch(w, r, s, "")
}

// CancelLeg reverts the pending leg
func (h *Handlers) CancelLeg(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.manager.CancelLeg)
}

// ConfirmMatch finishes the match
func (h *Handlers) ConfirmMatch(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.manager.ConfirmMatch)
}

// CancelMatch reverts the pending match confirmation
func (h *Handlers) CancelMatch(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.manager.CancelMatch)
}

func (h *Handlers) simple(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, id string) (match.State, error)) {
	s, err := action(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.respondMatch(w, r, s, "")
}

// UpdateSettings changes the legs to win
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LegsToWin int `json:"legsToWin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.manager.SetLegsToWin(r.Context(), chi.URLParam(r, "id"), req.LegsToWin)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.respondMatch(w, r, s, "")
}

// Restart starts the match over
func (h *Handlers) Restart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirm bool          `json:"confirm"`
		Config  *match.Config `json:"config,omitempty"`
	}
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.manager.Restart(r.Context(), chi.URLParam(r, "id"), req.Config, req.Confirm)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	h.respondMatch(w, r, s, "")
}

// GetStats returns the statistics of a finished match
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	g, err := h.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	s := g.GetState()
	if s.Stats == nil {
		respondError(w, r, http.StatusNotFound, "match is not finished")
		return
	}
	respondJSON(w, r, http.StatusOK, s.Stats)
}

// GetCheckoutDarts returns how many darts a checkout of the given score could have taken
func (h *Handlers) GetCheckoutDarts(w http.ResponseWriter, r *http.Request) {
	score, err := strconv.Atoi(chi.URLParam(r, "score"))
	if err != nil || score < 2 || score > 170 {
		respondError(w, r, http.StatusBadRequest, "score must be a checkout between 2 and 170")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"score":         score,
		"possibleDarts": match.PossibleDartCounts(score),
	})
}

// GetLeaderboard returns the top players
func (h *Handlers) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, r, http.StatusServiceUnavailable, "match archive not configured")
		return
	}

	entries, err := h.archive.GetLeaderboard(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to get leaderboard")
		respondError(w, r, http.StatusInternalServerError, "Failed to get leaderboard")
		return
	}
	respondJSON(w, r, http.StatusOK, entries)
}

// GetHistory returns recently finished matches, optionally for one player
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		respondError(w, r, http.StatusServiceUnavailable, "match archive not configured")
		return
	}

	matches, err := h.archive.GetRecentMatches(r.Context(), r.URL.Query().Get("player"), queryInt(r, "limit", 20))
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to get match history")
		respondError(w, r, http.StatusInternalServerError, "Failed to get match history")
		return
	}
	respondJSON(w, r, http.StatusOK, matches)
}

// GetAnalytics returns match analytics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"realtime": map[string]any{
			"activeMatches": h.manager.Count(),
			"kafkaEnabled":  h.kafkaOn,
		},
	}

	if h.analytics != nil {
		response["kafka"] = map[string]any{
			"avgMatchDuration": h.analytics.GetAverageMatchDuration(),
			"matchesPerHour":   h.analytics.GetMatchesPerHour(),
			"metrics":          h.analytics.GetMetrics(),
		}
	}

	respondJSON(w, r, http.StatusOK, response)
}

// SearchPlayers finds players by approximate name
func (h *Handlers) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		respondError(w, r, http.StatusServiceUnavailable, "analytics not available")
		return
	}
	respondJSON(w, r, http.StatusOK, h.analytics.SearchPlayers(r.URL.Query().Get("q")))
}

// GetPlayer returns the analytics of one player
func (h *Handlers) GetPlayer(w http.ResponseWriter, r *http.Request) {
	if h.analytics == nil {
		respondError(w, r, http.StatusServiceUnavailable, "analytics not available")
		return
	}

	pm, ok := h.analytics.GetPlayer(chi.URLParam(r, "name"))
	if !ok {
		respondError(w, r, http.StatusNotFound, "player not found")
		return
	}
	respondJSON(w, r, http.StatusOK, pm)
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]any{
		"status":        "ok",
		"activeMatches": h.manager.Count(),
		"kafkaEnabled":  h.kafkaOn,
		"archive":       h.archive != nil,
	})
}

// decodeOptional decodes the request body into v, accepting an empty body
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
