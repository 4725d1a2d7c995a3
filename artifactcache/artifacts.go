package artifactcache

import (
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/coreruntime/kernel/cmn/cos"
	"github.com/coreruntime/kernel/kerrors"
	"github.com/coreruntime/kernel/rtlog"
)

// schemaVersion is bumped whenever a table's row shape changes; the
// database stores one version for all tables, and ArtifactDB purges every
// table when the stored version doesn't match, rather than evicting row by
// row.
const schemaVersion = 1

const versionKey = "__schema_version__"

// EmitData is a row of the emitdata table: the transpiled-JS text for a
// source, keyed by (specifier, version).
type EmitData struct {
	Specifier   string  `json:"specifier"`
	Version     string  `json:"version"`
	SourceHash  string  `json:"source_hash"`
	Text        string  `json:"text"`
	SourceMap   *string `json:"source_map,omitempty"`
	Declaration *string `json:"declaration,omitempty"`
}

// TSBuildInfo is a row of the tsbuildinfo table.
type TSBuildInfo struct {
	Specifier string `json:"specifier"`
	Version   string `json:"version"`
	Text      string `json:"text"`
}

// ModuleInfoCache is a row of the moduleinfocache table: the parsed
// structural summary of a module. Rows are keyed by (specifier,
// source_hash) only: media_type is stored in the row but is not part of
// the key, so a put for the same specifier and hash with another media
// type replaces the existing row.
type ModuleInfoCache struct {
	Specifier  string `json:"specifier"`
	MediaType  int    `json:"media_type"`
	SourceHash string `json:"source_hash"`
	ModuleInfo string `json:"module_info"`
}

// ArtifactDB is the embedded artifact store, realized with buntdb (an
// embedded Go KV store) rather than an actual SQLite driver, since the
// contract only needs per-table versioned key/value storage and
// insert-or-replace semantics, not SQL. A corrupt database falls back to
// an in-memory table instead of failing the caller's operation.
type ArtifactDB struct {
	db       *buntdb.DB
	inMemory bool
}

// OpenArtifactDB opens path, recovering to an in-memory buntdb instance
// (with a logged warning) if the file is corrupt; corruption never errors
// the user's operation.
func OpenArtifactDB(path string) (*ArtifactDB, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		rtlog.Warningf("artifactcache: %q is corrupt (%v), falling back to in-memory", path, err)
		db, err = buntdb.Open(":memory:")
		if err != nil {
			return nil, kerrors.Wrap(kerrors.KindIo, err, "open in-memory fallback artifact db")
		}
		a := &ArtifactDB{db: db, inMemory: true}
		return a, a.checkSchema()
	}
	a := &ArtifactDB{db: db}
	return a, a.checkSchema()
}

func (a *ArtifactDB) checkSchema() error {
	var stored int
	err := a.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(versionKey)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		_, scanErr := fmt.Sscanf(v, "%d", &stored)
		return scanErr
	})
	if err != nil {
		return kerrors.Wrap(kerrors.KindInvalidData, err, "read artifact db schema version")
	}
	if stored == schemaVersion {
		return nil
	}
	rtlog.Warningf("artifactcache: schema bump %d -> %d, purging all tables", stored, schemaVersion)
	return a.db.Update(func(tx *buntdb.Tx) error {
		if err := tx.DeleteAll(); err != nil {
			return err
		}
		_, _, err := tx.Set(versionKey, fmt.Sprintf("%d", schemaVersion), nil)
		return err
	})
}

func (a *ArtifactDB) Close() error { return a.db.Close() }

const (
	tableEmitData        = "emitdata"
	tableTSBuildInfo      = "tsbuildinfo"
	tableModuleInfoCache  = "moduleinfocache"
)

func rowKey(table, specifier, version string) string {
	return table + "\x00" + specifier + "\x00" + version
}

// PutEmitData is an INSERT OR REPLACE into the emitdata table.
func (a *ArtifactDB) PutEmitData(row EmitData) error {
	raw, err := cos.JSON.Marshal(row)
	if err != nil {
		return kerrors.Wrap(kerrors.KindInvalidData, err, "marshal emitdata row")
	}
	return a.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(rowKey(tableEmitData, row.Specifier, row.Version), string(raw), nil)
		return err
	})
}

func (a *ArtifactDB) GetEmitData(specifier, version string) (*EmitData, bool, error) {
	var row EmitData
	found := false
	err := a.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(rowKey(tableEmitData, specifier, version))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return cos.JSON.UnmarshalFromString(v, &row)
	})
	if err != nil {
		return nil, false, kerrors.Wrap(kerrors.KindInvalidData, err, "read emitdata row")
	}
	if !found {
		return nil, false, nil
	}
	return &row, true, nil
}

func (a *ArtifactDB) PutTSBuildInfo(row TSBuildInfo) error {
	raw, err := cos.JSON.Marshal(row)
	if err != nil {
		return kerrors.Wrap(kerrors.KindInvalidData, err, "marshal tsbuildinfo row")
	}
	return a.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(rowKey(tableTSBuildInfo, row.Specifier, row.Version), string(raw), nil)
		return err
	})
}

func (a *ArtifactDB) PutModuleInfo(row ModuleInfoCache) error {
	raw, err := cos.JSON.Marshal(row)
	if err != nil {
		return kerrors.Wrap(kerrors.KindInvalidData, err, "marshal moduleinfocache row")
	}
	key := rowKey(tableModuleInfoCache, row.Specifier, row.SourceHash)
	return a.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(raw), nil)
		return err
	})
}

func (a *ArtifactDB) GetModuleInfo(specifier, sourceHash string) (*ModuleInfoCache, bool, error) {
	var row ModuleInfoCache
	found := false
	err := a.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(rowKey(tableModuleInfoCache, specifier, sourceHash))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return cos.JSON.UnmarshalFromString(v, &row)
	})
	if err != nil {
		return nil, false, kerrors.Wrap(kerrors.KindInvalidData, err, "read moduleinfocache row")
	}
	if !found {
		return nil, false, nil
	}
	return &row, true, nil
}
