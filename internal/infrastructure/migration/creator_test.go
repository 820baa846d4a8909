package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add retainage column", "add_retainage_column"},
		{"Add-Retainage-Column", "add_retainage_column"},
		{"ADD__RETAINAGE", "add_retainage"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("numbers the first migration 1", func(t *testing.T) {
		dir := t.TempDir()

		mf, err := CreateMigration(dir, "create projects")
		require.NoError(t, err)
		assert.Equal(t, "000001", mf.Version)
		assert.Equal(t, filepath.Join(dir, "000001_create_projects.up.sql"), mf.UpPath)
		assert.Equal(t, filepath.Join(dir, "000001_create_projects.down.sql"), mf.DownPath)

		content, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "-- create projects")
	})

	t.Run("continues after the highest number", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_old.up.sql"), nil, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000007_old.down.sql"), nil, 0o644))

		mf, err := CreateMigration(dir, "add index")
		require.NoError(t, err)
		assert.Equal(t, "000008", mf.Version)
	})

	t.Run("rejects an empty name", func(t *testing.T) {
		_, err := CreateMigration(t.TempDir(), "!!!")
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000010_later.up.sql":   {},
		"000010_later.down.sql": {},
		"000002_second.up.sql":  {},
		"000001_first.up.sql":   {},
		"README.md":             {},
	}

	names, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_first", "000002_second", "000010_later"}, names)
}

func TestEmbedded(t *testing.T) {
	names, err := ListMigrations(Embedded())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_create_oauth_tokens",
		"000002_create_billing_tables",
		"000003_split_company_remote_ids",
	}, names)

	for _, name := range names {
		_, err := Embedded().Open(name + ".down.sql")
		assert.NoError(t, err, name)
	}
}
