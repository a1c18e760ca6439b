package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/pitchdeck/internal/config"
	"github.com/smallbiznis/pitchdeck/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrateFallsBackToAutoMigrate(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Migrate(conn, config.Config{DBType: db.TypeSQLite}, zap.NewNop()))

	for _, table := range []string{"users", "memberships", "invitations", "media_authors", "pitch_target_authors", "audit_logs", "outbox_events"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, entry := range entries {
		switch {
		case strings.HasSuffix(entry.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(entry.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Positive(t, ups)
	assert.Equal(t, ups, downs)

	initial, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(initial), "WHERE status = 'PENDING'")
}
