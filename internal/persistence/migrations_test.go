package persistence

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/query-triage/migrations"
)

func TestMigrationNames(t *testing.T) {
	files := fstest.MapFS{
		"002_tags.sql":  {Data: []byte("SELECT 1")},
		"001_init.sql":  {Data: []byte("SELECT 1")},
		"README.md":     {Data: []byte("docs")},
		"archive/x.sql": {Data: []byte("SELECT 1")},
	}
	names, err := migrationNames(files)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_tags.sql"}, names)
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := migrationNames(migrations.Files)
	require.NoError(t, err)
	assert.Contains(t, names, "001_init.sql")
}
