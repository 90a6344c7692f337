package index_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dftracer-utils/traceindex/pkg/common"
	"github.com/dftracer-utils/traceindex/pkg/index"
)

func TestStoreRebuildAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.idx")
	store, err := index.Open(path)
	require.NoError(t, err)
	defer store.Close()

	handle := common.ArchiveHandle{
		LogicalName: "archive.gz",
		ByteSize:    1024,
		ModTimeUnix: 1700000000,
		SHA256Hex:   "deadbeef",
	}
	checkpoints := []common.CheckpointRecord{
		{CheckpointIdx: 0, UCOffset: 0, UCSize: 512, COffset: 10, CSize: 100, Bits: 3, DictCompressed: []byte{1, 2, 3}, NumLines: 10},
		{CheckpointIdx: 1, UCOffset: 512, UCSize: 512, COffset: 110, CSize: 100, Bits: 5, DictCompressed: []byte{4, 5, 6}, NumLines: 8},
	}
	meta := common.IndexMetadata{CheckpointSize: 512, TotalLines: 18, TotalUCSize: 1024}
	members := []common.TarMember{{Name: "a.json", UCStartOffset: 0, UCLength: 1024}}

	require.NoError(t, store.Rebuild(handle, checkpoints, meta, members))

	loadedHandle, ok, err := store.LoadHandle("archive.gz")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, handle, loadedHandle)

	loadedCps, err := store.LoadCheckpoints("archive.gz")
	require.NoError(t, err)
	require.Len(t, loadedCps, 2)
	require.Equal(t, checkpoints[0].UCOffset, loadedCps[0].UCOffset)
	require.Equal(t, checkpoints[1].Bits, loadedCps[1].Bits)

	loadedMeta, err := store.LoadMetadata("archive.gz")
	require.NoError(t, err)
	require.Equal(t, meta, loadedMeta)

	loadedMembers, err := store.LoadTarMembers("archive.gz")
	require.NoError(t, err)
	require.Len(t, loadedMembers, 1)
	require.Equal(t, "a.json", loadedMembers[0].Name)
}

func TestStoreRebuildIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.idx")
	store, err := index.Open(path)
	require.NoError(t, err)
	defer store.Close()

	handle := common.ArchiveHandle{LogicalName: "archive.gz", ByteSize: 10, ModTimeUnix: 1, SHA256Hex: "a"}
	cps := []common.CheckpointRecord{{CheckpointIdx: 0, UCOffset: 0, UCSize: 10, DictCompressed: []byte{1}}}
	meta := common.IndexMetadata{CheckpointSize: 10, TotalLines: 1, TotalUCSize: 10}

	require.NoError(t, store.Rebuild(handle, cps, meta, nil))
	require.NoError(t, store.Rebuild(handle, cps, meta, nil))

	loaded, err := store.LoadCheckpoints("archive.gz")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
}

func TestIsFresh(t *testing.T) {
	a := common.ArchiveHandle{LogicalName: "x", ByteSize: 10, ModTimeUnix: 5, SHA256Hex: "h"}
	b := a
	require.True(t, index.IsFresh(a, b))

	b.SHA256Hex = "different"
	require.False(t, index.IsFresh(a, b))
}
