package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipdeck/clipdeck/config"
	"github.com/clipdeck/clipdeck/internal/infrastructure/persistence/postgres"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("store"))

	for _, sub := range []string{"up", "down", "status"} {
		cmd, _, err := root.Find([]string{"migrate", sub})
		require.NoError(t, err)
		assert.Equal(t, sub, cmd.Name())
	}
}

func TestPostgresConfig_MapsEnvironment(t *testing.T) {
	cfg := postgresConfig(config.DatabaseConfig{
		URL:             "postgres://db/clipdeck",
		MaxConns:        7,
		MinConns:        1,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: 30 * time.Second,
		QueryTimeout:    time.Second,
	}, true)

	assert.Equal(t, "postgres://db/clipdeck", cfg.URL)
	assert.Equal(t, int32(7), cfg.MaxConns)
	assert.Equal(t, time.Second, cfg.QueryTimeout)
	assert.True(t, cfg.Tracing)
	assert.Equal(t, postgres.DefaultConfig().ConnectTimeout, cfg.ConnectTimeout)
}

func TestPrintMigrations(t *testing.T) {
	applied := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, printMigrations(&buf, []postgres.Migration{
		{Version: 1, Name: "create_actors", IsApplied: true, AppliedAt: applied},
		{Version: 2, Name: "create_content"},
	}))

	out := buf.String()
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "2026-03-01T12:00:00Z")
	assert.Contains(t, out, "create_content")
	assert.Contains(t, out, "pending")
}
