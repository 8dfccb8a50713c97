package database

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rellinxe27/tacheSure-platform2-sub000/migrations"
)

func TestExtractUpMigration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unmarked", "CREATE TABLE a (id INT);", "CREATE TABLE a (id INT);"},
		{"up only", "-- +migrate Up\nCREATE TABLE a (id INT);", "\nCREATE TABLE a (id INT);"},
		{"up and down", "-- +migrate Up\nCREATE TABLE a (id INT);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a (id INT);\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractUpMigration(tt.content))
		})
	}
}

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.sql":   &fstest.MapFile{Data: []byte("SELECT 2;")},
		"0001_a.sql":   &fstest.MapFile{Data: []byte("SELECT 1;")},
		"README.md":    &fstest.MapFile{Data: []byte("docs")},
		"nested/x.sql": &fstest.MapFile{Data: []byte("SELECT 3;")},
	}
	files, err := migrationFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql", "0002_b.sql"}, files)
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := migrationFiles(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var all strings.Builder
	for _, file := range files {
		content, err := fs.ReadFile(migrations.FS, file)
		require.NoError(t, err)
		up := ExtractUpMigration(string(content))
		assert.NotContains(t, up, "DROP TABLE", "%s: down section leaked into up", file)
		all.WriteString(up)
	}

	schema := all.String()
	for _, table := range []string{"tasks", "time_slots", "bookings", "provider_schedules", "verification_steps", "trust_profiles"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, schema, "idx_bookings_active_slot")
}
