package block_ring_buffer_go

import (
	"github.com/google/btree"
	"github.com/pkg/errors"
)

const indexDegree = 32

type indexEntry struct {
	key    Key
	handle blockHandle
}

func indexLess(a, b indexEntry) bool {
	return a.key < b.key
}

// blockIndex maps keys to their record handle. It holds at most one entry per
// key; live and delete-pending records are both indexed until compaction
// reclaims the latter.
type blockIndex struct {
	tree *btree.BTreeG[indexEntry]
}

func newBlockIndex() *blockIndex {
	return &blockIndex{
		tree: btree.NewG(indexDegree, indexLess),
	}
}

func (index *blockIndex) lookup(key Key) (blockHandle, bool) {
	entry, found := index.tree.Get(indexEntry{key: key})
	if !found {
		return noBlock, false
	}

	return entry.handle, true
}

// insert fails if the key is already indexed.
func (index *blockIndex) insert(key Key, handle blockHandle) error {
	if index.tree.Has(indexEntry{key: key}) {
		return errors.Wrapf(ErrInternalIndex, "insert %q: key already indexed", key)
	}

	index.tree.ReplaceOrInsert(indexEntry{key: key, handle: handle})
	return nil
}

// remove fails if the key is not indexed.
func (index *blockIndex) remove(key Key) error {
	if _, found := index.tree.Delete(indexEntry{key: key}); !found {
		return errors.Wrapf(ErrInternalIndex, "erase %q: key not indexed", key)
	}

	return nil
}

func (index *blockIndex) len() int {
	return index.tree.Len()
}

func (index *blockIndex) clear() {
	index.tree.Clear(false)
}
