package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"guessr-client/internal/game"
	"guessr-client/internal/history"
)

// setupStore starts a throwaway Postgres and returns a migrated Store.
func setupStore(t *testing.T) *history.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("guessr"),
		postgres.WithUsername("guessr"),
		postgres.WithPassword("guessr"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("Failed to start postgres: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	store, err := history.Open(ctx, url)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	// Migrate is idempotent.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to migrate twice: %v", err)
	}
	return store
}

func finishedGame() map[string][]game.Round {
	return map[string][]game.Round{
		"alice": {
			{Location: game.Point{X: 1, Y: 2}, GuessLocation: game.Point{X: 1, Y: 2}, Score: 5000, Time: 1200, PanoramaID: 10, Finished: true},
			{Location: game.Point{X: 5, Y: 5}, GuessLocation: game.Point{X: 8, Y: 9}, Distance: 5, Score: 4995, Time: 800, PanoramaID: 11, Finished: true},
		},
		"bob": {
			{Location: game.Point{X: 1, Y: 2}, GuessLocation: game.Point{X: 301, Y: 2}, Distance: 300, Score: 4700, Time: 3000, PanoramaID: 10, Finished: true},
			{Location: game.Point{X: 5, Y: 5}, PanoramaID: 11},
		},
	}
}

func TestStore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	t.Run("schema version", func(t *testing.T) {
		version, err := store.SchemaVersion(ctx)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), version)
	})

	t.Run("save and load", func(t *testing.T) {
		assert := assert.New(t)
		assert.NoError(store.SaveGame(ctx, "ROUNDS", finishedGame()))

		loaded, err := store.LoadGame(ctx, "ROUNDS")
		assert.NoError(err)
		assert.Equal(finishedGame(), loaded)
	})

	t.Run("save twice overwrites", func(t *testing.T) {
		assert := assert.New(t)
		players := finishedGame()
		assert.NoError(store.SaveGame(ctx, "UPSERT", players))

		players["bob"][1].Score = 100
		players["bob"][1].Finished = true
		assert.NoError(store.SaveGame(ctx, "UPSERT", players))

		loaded, err := store.LoadGame(ctx, "UPSERT")
		assert.NoError(err)
		assert.Equal(100.0, loaded["bob"][1].Score)
		assert.Len(loaded["bob"], 2)
	})

	t.Run("totals", func(t *testing.T) {
		assert := assert.New(t)
		assert.NoError(store.SaveGame(ctx, "TOTALS", finishedGame()))

		totals, err := store.PlayerTotals(ctx, "TOTALS")
		assert.NoError(err)
		assert.Equal([]history.Totals{
			{PlayerID: "alice", Score: 9995, Distance: 5, Time: 2000},
			{PlayerID: "bob", Score: 4700, Distance: 300, Time: 3000},
		}, totals)
	})

	t.Run("missing game", func(t *testing.T) {
		_, err := store.LoadGame(ctx, "NOSUCH")
		assert.ErrorIs(t, err, history.ErrGameNotFound)

		totals, err := store.PlayerTotals(ctx, "NOSUCH")
		assert.NoError(t, err)
		assert.Empty(t, totals)
	})

	t.Run("delete", func(t *testing.T) {
		assert := assert.New(t)
		assert.NoError(store.SaveGame(ctx, "DELETE", finishedGame()))

		assert.NoError(store.DeleteGame(ctx, "DELETE"))
		_, err := store.LoadGame(ctx, "DELETE")
		assert.ErrorIs(err, history.ErrGameNotFound)
		assert.ErrorIs(store.DeleteGame(ctx, "DELETE"), history.ErrGameNotFound)
	})

	t.Run("empty game id", func(t *testing.T) {
		assert.Error(t, store.SaveGame(ctx, "", finishedGame()))
	})
}
