package tarindex

import (
	"github.com/tidwall/btree"

	"github.com/dftracer-utils/traceindex/pkg/common"
)

// MemberIndex is an in-memory ordered index over a tar.gz archive's
// members, resolving a member by name in O(log n) instead of the
// linear scan a plain slice would need -- the same role
// beam-cloud/clip's archive.go gives its own btree.New/Ascend file
// index.
type MemberIndex struct {
	byName   *btree.BTreeG[nameEntry]
	byOffset []common.TarMember // kept sorted by UCStartOffset, MemberAt's contract
}

type nameEntry struct {
	name   string
	member common.TarMember
}

func lessName(a, b nameEntry) bool { return a.name < b.name }

// NewMemberIndex builds a MemberIndex over members, which must already
// be sorted by UCStartOffset (Scan's output already is).
func NewMemberIndex(members []common.TarMember) *MemberIndex {
	bt := btree.NewBTreeG(lessName)
	for _, m := range members {
		bt.Set(nameEntry{name: m.Name, member: m})
	}
	return &MemberIndex{byName: bt, byOffset: members}
}

// ByName resolves a member by its exact tar entry name.
func (idx *MemberIndex) ByName(name string) (common.TarMember, bool) {
	e, ok := idx.byName.Get(nameEntry{name: name})
	return e.member, ok
}

// AtOffset resolves the member covering uncompressed offset off.
func (idx *MemberIndex) AtOffset(off int64) (common.TarMember, bool) {
	return common.MemberAt(idx.byOffset, off)
}

// Names returns every member name in lexical order.
func (idx *MemberIndex) Names() []string {
	names := make([]string, 0, idx.byName.Len())
	idx.byName.Scan(func(e nameEntry) bool {
		names = append(names, e.name)
		return true
	})
	return names
}
