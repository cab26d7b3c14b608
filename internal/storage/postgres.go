package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
)

// PostgresStore keeps match state in PostgreSQL and archives finished matches
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dbURL and makes sure the schema exists
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL database")
	return store, nil
}

// initSchema creates the necessary tables
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS match_store (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS finished_matches (
			id TEXT PRIMARY KEY,
			player1 VARCHAR(50) NOT NULL,
			player2 VARCHAR(50) NOT NULL,
			winner VARCHAR(50) NOT NULL,
			legs_player1 INTEGER NOT NULL,
			legs_player2 INTEGER NOT NULL,
			average_player1 NUMERIC(6,2) NOT NULL,
			average_player2 NUMERIC(6,2) NOT NULL,
			one_eighties_player1 INTEGER NOT NULL DEFAULT 0,
			one_eighties_player2 INTEGER NOT NULL DEFAULT 0,
			checkout_player1 INTEGER NOT NULL DEFAULT 0,
			checkout_player2 INTEGER NOT NULL DEFAULT 0,
			legs JSONB,
			finished_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_finished_matches_player1 ON finished_matches(player1);
		CREATE INDEX IF NOT EXISTS idx_finished_matches_player2 ON finished_matches(player2);
		CREATE INDEX IF NOT EXISTS idx_finished_matches_finished_at ON finished_matches(finished_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM match_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO match_store (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	_, err := s.pool.Exec(ctx, query, key, value)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM match_store WHERE key = $1`, key)
	return err
}

func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM match_store WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ArchiveMatch stores a finished match for the leaderboard
func (s *PostgresStore) ArchiveMatch(ctx context.Context, matchID string, stats match.MatchStats) error {
	legsJSON, err := json.Marshal(stats.Legs)
	if err != nil {
		legsJSON = []byte("[]")
	}

	winner := stats.Player1.Name
	if stats.Winner == match.Player2 {
		winner = stats.Player2.Name
	}

	query := `
		INSERT INTO finished_matches (id, player1, player2, winner, legs_player1, legs_player2,
		                              average_player1, average_player2,
		                              one_eighties_player1, one_eighties_player2,
		                              checkout_player1, checkout_player2, legs, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = s.pool.Exec(ctx, query,
		matchID,
		stats.Player1.Name,
		stats.Player2.Name,
		winner,
		stats.Player1.LegsWon,
		stats.Player2.LegsWon,
		stats.Player1.Average,
		stats.Player2.Average,
		stats.Player1.OneEightiesCount,
		stats.Player2.OneEightiesCount,
		stats.Player1.HighestCheckout,
		stats.Player2.HighestCheckout,
		legsJSON,
		stats.FinishedAt,
	)
	return err
}

// GetLeaderboard returns the top players by match wins
func (s *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		WITH player_matches AS (
			SELECT player1 AS name, winner, average_player1 AS average,
			       one_eighties_player1 AS one_eighties, checkout_player1 AS checkout
			FROM finished_matches
			UNION ALL
			SELECT player2 AS name, winner, average_player2 AS average,
			       one_eighties_player2 AS one_eighties, checkout_player2 AS checkout
			FROM finished_matches
		)
		SELECT
			name,
			COUNT(*) FILTER (WHERE winner = name) AS wins,
			COUNT(*) FILTER (WHERE winner != name) AS losses,
			COUNT(*) AS matches,
			CASE WHEN COUNT(*) > 0 THEN ROUND(COUNT(*) FILTER (WHERE winner = name)::numeric / COUNT(*) * 100, 1) ELSE 0 END AS win_rate,
			COALESCE(MAX(average), 0)::float8 AS best_average,
			COALESCE(SUM(one_eighties), 0) AS one_eighties,
			COALESCE(MAX(checkout), 0) AS highest_checkout
		FROM player_matches
		GROUP BY name
		ORDER BY wins DESC, win_rate DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	rank := 1
	for rows.Next() {
		var entry LeaderboardEntry
		err := rows.Scan(
			&entry.Name,
			&entry.Wins,
			&entry.Losses,
			&entry.Matches,
			&entry.WinRate,
			&entry.BestAverage,
			&entry.OneEighties,
			&entry.HighestCheckout,
		)
		if err != nil {
			return nil, err
		}
		entry.Rank = rank
		entries = append(entries, entry)
		rank++
	}

	return entries, rows.Err()
}

// GetRecentMatches returns the latest archived matches, optionally for one player
func (s *PostgresStore) GetRecentMatches(ctx context.Context, player string, limit int) ([]FinishedMatch, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, player1, player2, winner, legs_player1, legs_player2,
		       average_player1::float8, average_player2::float8, finished_at
		FROM finished_matches
		WHERE $1 = '' OR player1 = $1 OR player2 = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, player, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]FinishedMatch, 0)
	for rows.Next() {
		var m FinishedMatch
		if err := rows.Scan(
			&m.ID,
			&m.Player1,
			&m.Player2,
			&m.Winner,
			&m.LegsPlayer1,
			&m.LegsPlayer2,
			&m.Average1,
			&m.Average2,
			&m.FinishedAt,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// Close closes the database connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
