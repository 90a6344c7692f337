package tarindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dftracer-utils/traceindex/pkg/common"
	"github.com/dftracer-utils/traceindex/pkg/tarindex"
)

func TestMemberIndexByNameAndOffset(t *testing.T) {
	members := []common.TarMember{
		{Name: "a.json", UCStartOffset: 0, UCLength: 100},
		{Name: "b.json", UCStartOffset: 100, UCLength: 50},
		{Name: "c.json", UCStartOffset: 150, UCLength: 25},
	}
	idx := tarindex.NewMemberIndex(members)

	m, ok := idx.ByName("b.json")
	require.True(t, ok)
	require.Equal(t, int64(100), m.UCStartOffset)

	_, ok = idx.ByName("missing.json")
	require.False(t, ok)

	m, ok = idx.AtOffset(160)
	require.True(t, ok)
	require.Equal(t, "c.json", m.Name)

	require.Equal(t, []string{"a.json", "b.json", "c.json"}, idx.Names())
}
