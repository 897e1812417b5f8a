package block_ring_buffer_go

// compactionPass summarizes one run of the compaction engine.
type compactionPass struct {
	reclaimedBlocks int
	reclaimedBytes  int
	movedBytes      int
}

// compactionEngine owns delete-pending bookkeeping and physically evicts
// delete-pending blocks from the backing store.
type compactionEngine struct {
	store *backingStore
	list  *blockList
	index *blockIndex

	pendingBlocks int
}

func newCompactionEngine(store *backingStore, list *blockList, index *blockIndex) *compactionEngine {
	return &compactionEngine{
		store: store,
		list:  list,
		index: index,
	}
}

func (engine *compactionEngine) markPending(record *blockRecord) {
	record.deletePending = true
	engine.store.pendingDeleteBytes += record.size
	engine.pendingBlocks++
}

// run reclaims every delete-pending block, tail to head, then re-anchors the
// offsets of the remaining records to the compacted layout.
//
// Walking from the tail means a reclaimed block only ever shifts bytes of
// blocks that were already visited, so offsets of the blocks still to visit
// stay accurate until the final re-anchoring walk.
func (engine *compactionEngine) run() (compactionPass, error) {
	var pass compactionPass
	if engine.pendingBlocks == 0 {
		return pass, nil
	}

	var err error
	engine.list.descend(func(handle blockHandle, record *blockRecord) bool {
		if !record.deletePending {
			return true
		}

		key, size := record.key, record.size
		isHead := handle == engine.list.head
		pass.movedBytes += engine.store.closeGap(record.offset, size, isHead)

		engine.list.remove(handle)
		if err = engine.index.remove(key); err != nil {
			return false
		}

		engine.store.pendingDeleteBytes -= size
		engine.pendingBlocks--
		pass.reclaimedBlocks++
		pass.reclaimedBytes += size

		return true
	})
	if err != nil {
		return pass, err
	}

	engine.reanchor()

	return pass, nil
}

// reanchor reassigns offsets head to tail, starting at the oldest byte.
func (engine *compactionEngine) reanchor() {
	offset := engine.store.start

	engine.list.ascend(func(_ blockHandle, record *blockRecord) bool {
		record.offset = offset
		offset = engine.store.wrap(offset + record.size)
		return true
	})
}

func (engine *compactionEngine) reset() {
	engine.pendingBlocks = 0
}
