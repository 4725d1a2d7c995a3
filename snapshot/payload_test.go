package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/snapshot"
)

func samplePayload() *snapshot.Payload {
	seed := uint64(42)
	meta := &snapshot.Metadata{
		Argv:               []string{"run", "main.ts"},
		Seed:               &seed,
		V8Flags:            []string{"--max-old-space-size=512"},
		LogLevel:           "info",
		EnvVarsFromFile:    map[string]string{"B": "2", "A": "1"},
		EntrypointKey:      "file:///main.ts",
		NodeModules:        snapshot.NodeModulesManaged,
		VFSCaseSensitivity: snapshot.CaseSensitive,
	}

	store := snapshot.NewModuleStore()
	store.Add("file:///main.ts", &snapshot.ModuleStoreEntry{
		MediaType: snapshot.MediaTypeScript,
		Data:      []byte("console.log(1)"),
	})
	store.Add("file:///lib.json", &snapshot.ModuleStoreEntry{
		MediaType: snapshot.MediaJSON,
		Data:      []byte(`{"a":1}`),
	})

	vfs := snapshot.NewVirtualFS(snapshot.CaseSensitive)
	vfs.AddFile("main.ts", []byte("console.log(1)"))
	vfs.AddDir("", []string{"main.ts"})

	return &snapshot.Payload{Metadata: meta, ModuleStore: store, VFS: vfs}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	p := samplePayload()
	data, err := snapshot.Serialize(p, false)
	require.NoError(t, err)

	got, err := snapshot.Deserialize(data)
	require.NoError(t, err)
	require.Equal(t, p.Metadata.Argv, got.Metadata.Argv)
	require.Equal(t, *p.Metadata.Seed, *got.Metadata.Seed)
	require.Equal(t, p.Metadata.EntrypointKey, got.Metadata.EntrypointKey)
	require.Equal(t, p.ModuleStore.Len(), got.ModuleStore.Len())

	id, ok := got.ModuleStore.Lookup("file:///main.ts")
	require.True(t, ok)
	entry, ok := got.ModuleStore.Get(id)
	require.True(t, ok)
	require.Equal(t, snapshot.MediaTypeScript, entry.MediaType)
	require.Equal(t, []byte("console.log(1)"), entry.Data)
}

func TestSerializeIsDeterministic(t *testing.T) {
	p := samplePayload()
	a, err := snapshot.Serialize(p, false)
	require.NoError(t, err)
	b, err := snapshot.Serialize(p, false)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestSerializeWithCompression(t *testing.T) {
	p := samplePayload()
	compressed, err := snapshot.Serialize(p, true)
	require.NoError(t, err)
	uncompressed, err := snapshot.Serialize(p, false)
	require.NoError(t, err)
	require.NotEqual(t, compressed, uncompressed)

	got, err := snapshot.Deserialize(compressed)
	require.NoError(t, err)
	require.Equal(t, p.Metadata.LogLevel, got.Metadata.LogLevel)
}

func TestDeserializeRejectsEmptyAndBadFlag(t *testing.T) {
	_, err := snapshot.Deserialize(nil)
	require.Error(t, err)

	_, err = snapshot.Deserialize([]byte{0x7f, 0x01, 0x02})
	require.Error(t, err)
}

func TestModuleStoreAddIsIdempotentForDuplicateSpecifiers(t *testing.T) {
	store := snapshot.NewModuleStore()
	id1 := store.Add("file:///x.ts", &snapshot.ModuleStoreEntry{MediaType: snapshot.MediaTypeScript, Data: []byte("a")})
	id2 := store.Add("file:///x.ts", &snapshot.ModuleStoreEntry{MediaType: snapshot.MediaTypeScript, Data: []byte("b")})
	require.Equal(t, id1, id2)
	require.Equal(t, 1, store.Len())
}
