package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darts-scorer/internal/kafka"
	"github.com/darts-scorer/internal/match"
	"github.com/darts-scorer/internal/session"
	"github.com/darts-scorer/internal/storage"
)

type stubArchive struct {
	entries []storage.LeaderboardEntry
	err     error
	player  string
}

func (a *stubArchive) GetLeaderboard(context.Context, int) ([]storage.LeaderboardEntry, error) {
	return a.entries, a.err
}

func (a *stubArchive) GetRecentMatches(_ context.Context, player string, _ int) ([]storage.FinishedMatch, error) {
	a.player = player
	return []storage.FinishedMatch{{ID: "m1", Player1: player}}, a.err
}

type stubAnalytics struct{}

func (stubAnalytics) GetMetrics() *kafka.AnalyticsMetrics { return &kafka.AnalyticsMetrics{TotalMatches: 7} }
func (stubAnalytics) GetAverageMatchDuration() float64 { return 600 }
func (stubAnalytics) GetMatchesPerHour() map[string]int { return map[string]int{} }

func (stubAnalytics) GetPlayer(name string) (kafka.PlayerMetrics, bool) {
	if name == "Ann" {
		return kafka.PlayerMetrics{Name: "Ann", Wins: 2}, true
	}
	return kafka.PlayerMetrics{}, false
}

func (stubAnalytics) SearchPlayers(q string) []kafka.PlayerMetrics {
	return []kafka.PlayerMetrics{{Name: "Ann"}}
}

func newTestServer(t *testing.T, archive Archive, analytics Analytics) *httptest.Server {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC))
	bridge := storage.NewBridge(storage.NewMemoryBackend(), clock, storage.DefaultExpiry)
	manager := session.NewManager(bridge, nil, match.Config{StartingScore: 501, LegsToWin: 3})

	r := chi.NewRouter()
	r.Route("/api", NewHandlers(manager, archive, analytics, false).RegisterRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func state(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	s, ok := body["state"].(map[string]any)
	require.True(t, ok, "response has no state: %v", body)
	return s
}

func playerField(t *testing.T, body map[string]any, player, field string) any {
	t.Helper()
	p, ok := state(t, body)[player].(map[string]any)
	require.True(t, ok)
	return p[field]
}

func TestAPI_MatchFlow(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	status, body := call(t, srv, http.MethodPost, "/api/matches", `{"matchId":"m1","legsToWin":1,"player1Name":"Ann","player2Name":"Bob"}`)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "m1", state(t, body)["matchId"])

	for _, score := range []string{"180", "60", "180", "60", "100", "60"} {
		status, body = call(t, srv, http.MethodPost, "/api/matches/m1/throws", `{"score":`+score+`}`)
		require.Equal(t, http.StatusOK, status, body)
	}

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/throws", `{"score":41}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "checkout", body["outcome"])
	assert.Equal(t, "leg_confirmation", state(t, body)["phase"])

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/leg/confirm", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, match.ErrCheckoutDartsRequired.Error(), body["error"])

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/leg/confirm", `{"darts":2}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "match_confirmation", state(t, body)["phase"])

	status, _ = call(t, srv, http.MethodGet, "/api/matches/m1/stats", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/match/confirm", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "finished", state(t, body)["phase"])

	status, body = call(t, srv, http.MethodGet, "/api/matches/m1/stats", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["winner"])

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/throws", `{"score":60}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, match.ErrNotPlaying.Error(), body["error"])
}

func TestAPI_BustIsNotAnError(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	call(t, srv, http.MethodPost, "/api/matches", `{"matchId":"m1","startingScore":101}`)

	status, body := call(t, srv, http.MethodPost, "/api/matches/m1/throws", `{"score":120}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bust", body["outcome"])
	assert.Equal(t, float64(101), playerField(t, body, "player1", "score"))
	assert.Equal(t, float64(2), state(t, body)["currentPlayer"])
}

func TestAPI_Errors(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	call(t, srv, http.MethodPost, "/api/matches", `{"matchId":"m1"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "unknown match", method: http.MethodGet, path: "/api/matches/nope", status: http.StatusNotFound},
		{name: "score too high", method: http.MethodPost, path: "/api/matches/m1/throws", body: `{"score":181}`, status: http.StatusBadRequest},
		{name: "missing score", method: http.MethodPost, path: "/api/matches/m1/throws", body: `{}`, status: http.StatusBadRequest},
		{name: "nothing to undo", method: http.MethodPost, path: "/api/matches/m1/back", status: http.StatusConflict},
		{name: "edit out of range", method: http.MethodPut, path: "/api/matches/m1/throws/1/0", body: `{"value":60}`, status: http.StatusBadRequest},
		{name: "edit bad player", method: http.MethodPut, path: "/api/matches/m1/throws/x/0", body: `{"value":60}`, status: http.StatusBadRequest},
		{name: "no pending leg", method: http.MethodPost, path: "/api/matches/m1/leg/cancel", status: http.StatusConflict},
		{name: "no pending match", method: http.MethodPost, path: "/api/matches/m1/match/confirm", status: http.StatusConflict},
		{name: "legs to win too high", method: http.MethodPut, path: "/api/matches/m1/settings", body: `{"legsToWin":21}`, status: http.StatusBadRequest},
		{name: "invalid legs on open", method: http.MethodPost, path: "/api/matches", body: `{"legsToWin":99}`, status: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/api/matches", body: `{`, status: http.StatusBadRequest},
		{name: "bad key", method: http.MethodPost, path: "/api/matches/m1/keypad", body: `{"key":"x"}`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAPI_EditAndBack(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	call(t, srv, http.MethodPost, "/api/matches", `{"matchId":"m1"}`)
	call(t, srv, http.MethodPost, "/api/matches/m1/throws", `{"score":60}`)
	call(t, srv, http.MethodPost, "/api/matches/m1/throws", `{"score":45}`)

	status, body := call(t, srv, http.MethodPut, "/api/matches/m1/throws/1/0", `{"value":100}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(401), playerField(t, body, "player1", "score"))

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/back", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(501), playerField(t, body, "player2", "score"))
	assert.Equal(t, float64(2), state(t, body)["currentPlayer"])
}

func TestAPI_Keypad(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	call(t, srv, http.MethodPost, "/api/matches", `{"matchId":"m1"}`)

	for _, key := range []string{"1", "4", "0"} {
		status, _ := call(t, srv, http.MethodPost, "/api/matches/m1/keypad", `{"key":"`+key+`"}`)
		require.Equal(t, http.StatusOK, status)
	}

	status, body := call(t, srv, http.MethodPost, "/api/matches/m1/keypad", `{"key":"5"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, session.ErrDigitRejected.Error(), body["error"])

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/keypad", `{"key":"backspace"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "14", body["input"])

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/keypad", `{"key":"enter"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "scored", body["outcome"])
	assert.Equal(t, "", body["input"])
	assert.Equal(t, float64(487), playerField(t, body, "player1", "score"))
}

func TestAPI_Restart(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	call(t, srv, http.MethodPost, "/api/matches", `{"matchId":"m1"}`)
	call(t, srv, http.MethodPost, "/api/matches/m1/throws", `{"score":60}`)

	status, body := call(t, srv, http.MethodPost, "/api/matches/m1/restart", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, match.ErrConfirmationRequired.Error(), body["error"])

	status, body = call(t, srv, http.MethodPost, "/api/matches/m1/restart", `{"confirm":true,"config":{"legsToWin":7}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(7), state(t, body)["legsToWin"])
	assert.Equal(t, float64(501), playerField(t, body, "player1", "score"))
}

func TestAPI_CheckoutDarts(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	tests := []struct {
		score  string
		status int
		want   []any
	}{
		{score: "40", status: http.StatusOK, want: []any{float64(1), float64(2), float64(3)}},
		{score: "98", status: http.StatusOK, want: []any{float64(2), float64(3)}},
		{score: "170", status: http.StatusOK, want: []any{float64(3)}},
		{score: "171", status: http.StatusBadRequest},
		{score: "abc", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.score, func(t *testing.T) {
			status, body := call(t, srv, http.MethodGet, "/api/matches/any/darts/"+tt.score, "")
			assert.Equal(t, tt.status, status)
			if tt.want != nil {
				assert.Equal(t, tt.want, body["possibleDarts"])
			}
		})
	}
}

func TestAPI_ArchiveAndAnalytics(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv := newTestServer(t, nil, nil)
		for _, path := range []string{"/api/leaderboard", "/api/history", "/api/analytics/players?q=an"} {
			status, _ := call(t, srv, http.MethodGet, path, "")
			assert.Equal(t, http.StatusServiceUnavailable, status, path)
		}

		status, body := call(t, srv, http.MethodGet, "/api/status", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, false, body["archive"])
	})

	t.Run("configured", func(t *testing.T) {
		archive := &stubArchive{entries: []storage.LeaderboardEntry{{Rank: 1, Name: "Ann"}}}
		srv := newTestServer(t, archive, stubAnalytics{})

		status, _ := call(t, srv, http.MethodGet, "/api/history?player=Ann", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Ann", archive.player)

		status, body := call(t, srv, http.MethodGet, "/api/analytics", "")
		require.Equal(t, http.StatusOK, status)
		assert.Contains(t, body, "kafka")

		status, body = call(t, srv, http.MethodGet, "/api/analytics/players/Ann", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, float64(2), body["wins"])

		status, _ = call(t, srv, http.MethodGet, "/api/analytics/players/Zed", "")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("archive failure", func(t *testing.T) {
		srv := newTestServer(t, &stubArchive{err: errors.New("db down")}, nil)
		status, body := call(t, srv, http.MethodGet, "/api/leaderboard", "")
		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, "Failed to get leaderboard", body["error"])
	})
}
