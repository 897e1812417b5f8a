package block_ring_buffer_go

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MaxCapacity is the largest backing store New will allocate.
const MaxCapacity = math.MaxInt32

// BufferManager stores keyed, variable-sized blocks in a fixed-capacity ring.
//
// Deletes are lazy: they only flag the block. Flagged blocks are compacted out
// when an Add needs their space, when a flagged key is re-added, and before
// Flush or WriteTo emit the buffer contents.
type BufferManager struct {
	capacity int

	store   *backingStore
	list    *blockList
	index   *blockIndex
	engine  *compactionEngine
	metrics *compactionMetrics

	logger           *zap.Logger
	missingKeyPolicy MissingKeyPolicy

	// broken holds the index failure that made the manager unusable.
	broken error
	closed bool
}

// New allocates a BufferManager with the given capacity in bytes.
func New(capacity int64, opts ...Option) (*BufferManager, error) {
	if capacity <= 0 || capacity > MaxCapacity {
		return nil, errors.Wrapf(ErrAllocation, "capacity %d outside [1, %d]", capacity, int64(MaxCapacity))
	}

	o := newOptions(opts)
	store := newBackingStore(int(capacity))
	list := newBlockList()
	index := newBlockIndex()

	var metrics *compactionMetrics
	if o.metrics {
		metrics = newCompactionMetrics(int(capacity))
	}

	return &BufferManager{
		capacity: int(capacity),

		store:   store,
		list:    list,
		index:   index,
		engine:  newCompactionEngine(store, list, index),
		metrics: metrics,

		logger:           o.logger,
		missingKeyPolicy: o.missingKeyPolicy,
	}, nil
}

func (manager *BufferManager) GetCapacity() int64 {
	return int64(manager.capacity)
}

// Stats returns the current byte accounting.
func (manager *BufferManager) Stats() Stats {
	used := int64(manager.store.liveBytes())

	return Stats{
		Capacity:  int64(manager.capacity),
		BytesFree: int64(manager.capacity) - used,
		BytesUsed: used,
	}
}

func (manager *BufferManager) usable() error {
	if manager.closed {
		return ErrClosed
	}

	if manager.broken != nil {
		return errors.Wrap(ErrInternalIndex, "buffer manager unusable after index failure")
	}

	return nil
}

func (manager *BufferManager) fail(err error) error {
	manager.broken = err
	manager.logger.Error("block index out of sync with block list", zap.Error(err))

	return err
}

// Add stores data as a new block under key.
func (manager *BufferManager) Add(key Key, data []byte) (Stats, error) {
	if err := manager.usable(); err != nil {
		return manager.Stats(), err
	}

	if handle, found := manager.index.lookup(key); found {
		if !manager.list.get(handle).deletePending {
			return manager.Stats(), errors.Wrapf(ErrDuplicateKey, "add %q", key)
		}

		// The old block for key must be gone before the key can be indexed again.
		if err := manager.compact(); err != nil {
			return manager.Stats(), err
		}
	}

	if err := manager.reserve(len(data)); err != nil {
		return manager.Stats(), errors.Wrapf(err, "add %q (%d bytes)", key, len(data))
	}

	offset := manager.store.write(data)
	handle := manager.list.pushBack(blockRecord{
		key:    key,
		offset: offset,
		size:   len(data),
	})

	if err := manager.index.insert(key, handle); err != nil {
		return manager.Stats(), manager.fail(err)
	}

	return manager.Stats(), nil
}

// reserve makes sure size bytes are strictly free, compacting if that helps.
func (manager *BufferManager) reserve(size int) error {
	if size <= manager.store.freeBytes() {
		return nil
	}

	if size > manager.store.freeBytes()+manager.store.pendingDeleteBytes {
		return ErrInsufficientSpace
	}

	if err := manager.compact(); err != nil {
		return err
	}

	if size > manager.store.freeBytes() {
		return ErrInsufficientSpace
	}

	return nil
}

// Delete flags the block stored under key for deletion. The bytes stay in the
// backing store until a later compaction.
func (manager *BufferManager) Delete(key Key) (Stats, error) {
	if err := manager.usable(); err != nil {
		return manager.Stats(), err
	}

	handle, found := manager.index.lookup(key)
	if !found || manager.list.get(handle).deletePending {
		if manager.missingKeyPolicy == MissingKeyIgnore {
			return manager.Stats(), nil
		}

		return manager.Stats(), errors.Wrapf(ErrNotFound, "delete %q", key)
	}

	manager.engine.markPending(manager.list.get(handle))

	return manager.Stats(), nil
}

// Get returns a copy of the live block stored under key.
func (manager *BufferManager) Get(key Key) ([]byte, error) {
	if manager.closed {
		return nil, ErrClosed
	}

	handle, found := manager.index.lookup(key)
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "get %q", key)
	}

	record := manager.list.get(handle)
	if record.deletePending {
		return nil, errors.Wrapf(ErrNotFound, "get %q: block is pending delete", key)
	}

	p := make([]byte, record.size)
	manager.store.readAt(p, record.offset)

	return p, nil
}

// Compact reclaims every delete-pending block now.
func (manager *BufferManager) Compact() (Stats, error) {
	if err := manager.usable(); err != nil {
		return manager.Stats(), err
	}

	err := manager.compact()
	return manager.Stats(), err
}

func (manager *BufferManager) compact() error {
	pass, err := manager.engine.run()
	manager.metrics.record(pass)
	if err != nil {
		return manager.fail(err)
	}

	if pass.reclaimedBlocks > 0 {
		manager.logger.Debug("compacted buffer",
			zap.Int("reclaimed_blocks", pass.reclaimedBlocks),
			zap.Int("reclaimed_bytes", pass.reclaimedBytes),
			zap.Int("moved_bytes", pass.movedBytes),
			zap.Int("start", manager.store.start),
			zap.Int("end", manager.store.end()),
		)
	}

	return nil
}

// Flush compacts the buffer and returns a copy of all live bytes in logical
// order, oldest block first.
func (manager *BufferManager) Flush() ([]byte, error) {
	if err := manager.usable(); err != nil {
		return nil, err
	}

	if err := manager.compact(); err != nil {
		return nil, err
	}

	p := make([]byte, 0, manager.store.used)
	for _, segment := range manager.store.segments() {
		p = append(p, segment...)
	}

	return p, nil
}

// WriteTo compacts the buffer and writes all live bytes to w, as one segment
// or, when they straddle the capacity boundary, two.
func (manager *BufferManager) WriteTo(w io.Writer) (int64, error) {
	if err := manager.usable(); err != nil {
		return 0, err
	}

	if err := manager.compact(); err != nil {
		return 0, err
	}

	var total int64
	for _, segment := range manager.store.segments() {
		n, err := w.Write(segment)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// Layout returns every block, delete-pending ones included, in physical order.
func (manager *BufferManager) Layout() []BlockInfo {
	if manager.closed {
		return nil
	}

	layout := make([]BlockInfo, 0, manager.list.len())
	manager.list.ascend(func(_ blockHandle, record *blockRecord) bool {
		layout = append(layout, BlockInfo{
			Key:           record.key,
			Offset:        int64(record.offset),
			Size:          int64(record.size),
			DeletePending: record.deletePending,
		})
		return true
	})

	return layout
}

// Keys returns the keys of live blocks in insertion order.
func (manager *BufferManager) Keys() []Key {
	if manager.closed {
		return nil
	}

	keys := make([]Key, 0, manager.Len())
	manager.list.ascend(func(_ blockHandle, record *blockRecord) bool {
		if !record.deletePending {
			keys = append(keys, record.key)
		}
		return true
	})

	return keys
}

// Len returns the number of live blocks.
func (manager *BufferManager) Len() int {
	if manager.closed {
		return 0
	}

	return manager.list.len() - manager.engine.pendingBlocks
}

// Metrics returns a snapshot of compaction activity.
func (manager *BufferManager) Metrics() CompactionMetrics {
	return manager.metrics.snapshot()
}

// Reset drops every block and rewinds the ring. It also clears a previous
// index failure.
func (manager *BufferManager) Reset() error {
	if manager.closed {
		return ErrClosed
	}

	manager.store.reset()
	manager.list.reset()
	manager.index.clear()
	manager.engine.reset()
	manager.metrics.reset()
	manager.broken = nil

	return nil
}

// Close releases the backing store and every record.
func (manager *BufferManager) Close() error {
	if manager.closed {
		return nil
	}

	manager.closed = true
	manager.store.release()
	manager.list.reset()
	manager.index.clear()
	manager.engine.reset()

	return nil
}
