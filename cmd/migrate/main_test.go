package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionAndName(t *testing.T) {
	ver, name, err := parseVersionAndName("001_create_gateway_users.up.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, ver)
	assert.Equal(t, "create_gateway_users.up.sql", name)

	_, _, err = parseVersionAndName("create.sql")
	assert.Error(t, err)
	_, _, err = parseVersionAndName("abc_create.sql")
	assert.Error(t, err)
}

func TestLoadMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.up.sql", "001_a.up.sql", "001_a.down.sql", "README.md", "x_bad.sql"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}

	files, err := loadMigrationFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, 1, files[0].version)
	assert.Equal(t, 1, files[1].version)
	assert.Equal(t, 2, files[2].version)

	kinds := map[string]int{}
	for _, f := range files {
		kinds[f.kind]++
	}
	assert.Equal(t, map[string]int{"up": 2, "down": 1}, kinds)
}
