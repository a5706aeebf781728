package history

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"guessr-client/internal/game"
)

// ErrGameNotFound is returned when no rounds are archived for a game.
var ErrGameNotFound = errors.New("game not found")

//go:embed migrations/*.sql
var migrations embed.FS

// Totals is one player's aggregate over a finished game.
type Totals struct {
	PlayerID string
	Score    float64
	Distance float64
	Time     float64
}

// Store archives the final results of finished games in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the embedded goose migrations. Already applied versions
// are skipped.
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the latest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// SaveGame upserts every round of every player of gameID in one transaction.
func (s *Store) SaveGame(ctx context.Context, gameID string, players map[string][]game.Round) error {
	if gameID == "" {
		return errors.New("save game: empty game id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		INSERT INTO game_rounds (game_id, player_id, round_index, panorama_id,
			location_x, location_y, guess_x, guess_y, distance, time_ms, score, finished)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (game_id, player_id, round_index) DO UPDATE SET
			panorama_id = EXCLUDED.panorama_id,
			location_x  = EXCLUDED.location_x,
			location_y  = EXCLUDED.location_y,
			guess_x     = EXCLUDED.guess_x,
			guess_y     = EXCLUDED.guess_y,
			distance    = EXCLUDED.distance,
			time_ms     = EXCLUDED.time_ms,
			score       = EXCLUDED.score,
			finished    = EXCLUDED.finished,
			saved_at    = now()
	`

	batch := &pgx.Batch{}
	for playerID, rounds := range players {
		for i, r := range rounds {
			batch.Queue(query, gameID, playerID, i, r.PanoramaID,
				r.Location.X, r.Location.Y, r.GuessLocation.X, r.GuessLocation.Y,
				r.Distance, r.Time, r.Score, r.Finished)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save game %s: %w", gameID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit game %s: %w", gameID, err)
	}
	return nil
}

// LoadGame returns the archived rounds of gameID keyed by player.
func (s *Store) LoadGame(ctx context.Context, gameID string) (map[string][]game.Round, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT player_id, panorama_id, location_x, location_y, guess_x, guess_y,
			distance, time_ms, score, finished
		FROM game_rounds
		WHERE game_id = $1
		ORDER BY player_id, round_index
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}
	defer rows.Close()

	players := make(map[string][]game.Round)
	for rows.Next() {
		var (
			playerID string
			r        game.Round
		)
		if err := rows.Scan(&playerID, &r.PanoramaID,
			&r.Location.X, &r.Location.Y, &r.GuessLocation.X, &r.GuessLocation.Y,
			&r.Distance, &r.Time, &r.Score, &r.Finished); err != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", err)
		}
		players[playerID] = append(players[playerID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating round rows: %w", err)
	}

	if len(players) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return players, nil
}

// PlayerTotals sums score, distance and time per player, best score first.
func (s *Store) PlayerTotals(ctx context.Context, gameID string) ([]Totals, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT player_id, SUM(score), SUM(distance), SUM(time_ms)
		FROM game_rounds
		WHERE game_id = $1
		GROUP BY player_id
		ORDER BY SUM(score) DESC, player_id
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals for %s: %w", gameID, err)
	}

	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Totals, error) {
		var t Totals
		err := row.Scan(&t.PlayerID, &t.Score, &t.Distance, &t.Time)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect totals for %s: %w", gameID, err)
	}
	return totals, nil
}

// DeleteGame removes every archived round of gameID.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM game_rounds WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return nil
}
