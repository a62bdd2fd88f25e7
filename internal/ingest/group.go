package ingest

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// group records the set of documents admitted while it was the open group.
// Membership is a roaring bitmap over DocIDs; a closed group's bitmap is
// immutable until the group is expired.
type group struct {
	id     GroupID
	closed bool
	docs   *roaring64.Bitmap
}

func newGroup(id GroupID) *group {
	return &group{id: id, docs: roaring64.New()}
}

// tag records a document as belonging to the group.
func (g *group) tag(id DocID) {
	g.docs.Add(uint64(id))
}

// members returns the document ids in ascending order.
func (g *group) members() []DocID {
	out := make([]DocID, 0, g.docs.GetCardinality())
	it := g.docs.Iterator()
	for it.HasNext() {
		out = append(out, DocID(it.Next()))
	}
	return out
}
