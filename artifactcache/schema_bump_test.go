package artifactcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/buntdb"
)

// Simulates reopening a database written by an older build: the stored
// schema version no longer matches, so every table is purged and the
// version marker is rewritten.
func TestOpenPurgesAllTablesOnSchemaBump(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "artifacts.db")

	db, err := OpenArtifactDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.PutModuleInfo(ModuleInfoCache{
		Specifier: "https://example.com/mod.ts", MediaType: 2, SourceHash: "1", ModuleInfo: `{"imports":[]}`,
	}))
	require.NoError(t, db.Close())

	raw, err := buntdb.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, raw.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(versionKey, "0", nil)
		return err
	}))
	require.NoError(t, raw.Close())

	reopened, err := OpenArtifactDB(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok, err := reopened.GetModuleInfo("https://example.com/mod.ts", "1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, reopened.PutModuleInfo(ModuleInfoCache{
		Specifier: "https://example.com/mod.ts", MediaType: 2, SourceHash: "1", ModuleInfo: `{"imports":[]}`,
	}))
	row, ok, err := reopened.GetModuleInfo("https://example.com/mod.ts", "1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"imports":[]}`, row.ModuleInfo)
}
