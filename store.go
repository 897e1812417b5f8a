package block_ring_buffer_go

// backingStore owns the fixed-capacity byte region used as the ring.
//
// Bytes are held in one logical run beginning at start. The run contains live
// blocks and delete-pending blocks, used counts both. The write position is
// derived from start and used, so a full ring (start == end) is never mistaken
// for an empty one.
type backingStore struct {
	data  []byte
	start int
	used  int

	pendingDeleteBytes int
}

func newBackingStore(capacity int) *backingStore {
	return &backingStore{
		data: make([]byte, capacity),
	}
}

func (store *backingStore) cap() int {
	return len(store.data)
}

// end returns the next write position.
func (store *backingStore) end() int {
	if store.cap() == 0 {
		return 0
	}

	return store.wrap(store.start + store.used)
}

// freeBytes excludes space held by delete-pending blocks.
func (store *backingStore) freeBytes() int {
	return store.cap() - store.used
}

func (store *backingStore) liveBytes() int {
	return store.used - store.pendingDeleteBytes
}

// wrap folds an offset in [0, 2*cap) back into [0, cap).
func (store *backingStore) wrap(offset int) int {
	if offset >= store.cap() {
		offset -= store.cap()
	}

	return offset
}

// distance returns how far offset lies past start, walking forward.
func (store *backingStore) distance(offset int) int {
	d := offset - store.start
	if d < 0 {
		d += store.cap()
	}

	return d
}

// write copies p in at the write position and returns the offset it landed at.
// The caller guarantees len(p) <= freeBytes().
func (store *backingStore) write(p []byte) int {
	offset := store.end()
	bufferCap := store.cap()

	if offset+len(p) <= bufferCap {
		copy(store.data[offset:], p)
	} else {
		firstPart := bufferCap - offset
		copy(store.data[offset:], p[:firstPart])
		copy(store.data[0:], p[firstPart:])
	}

	store.used += len(p)

	return offset
}

// readAt copies len(p) bytes starting at offset into p.
func (store *backingStore) readAt(p []byte, offset int) int {
	bufferCap := store.cap()
	size := len(p)

	if offset+size <= bufferCap {
		return copy(p, store.data[offset:offset+size])
	}

	firstPart := bufferCap - offset
	a := copy(p, store.data[offset:])
	b := copy(p[firstPart:], store.data[0:size-firstPart])

	return a + b
}

// segments returns the held bytes in logical order: one slice when the run
// does not cross the capacity boundary, two otherwise.
func (store *backingStore) segments() [][]byte {
	if store.used == 0 {
		return nil
	}

	bufferCap := store.cap()
	if store.start+store.used <= bufferCap {
		return [][]byte{store.data[store.start : store.start+store.used]}
	}

	firstPart := bufferCap - store.start
	return [][]byte{
		store.data[store.start:],
		store.data[0 : store.used-firstPart],
	}
}

// closeGap removes the size bytes at offset from the run and returns how many
// bytes had to be moved to do so.
//
// Removing the head block only advances start. Any other block is overwritten
// by shifting the bytes that follow it, up to the write position, backward by
// size; removing the tail block therefore moves nothing and just retracts the
// write position.
func (store *backingStore) closeGap(offset, size int, isHead bool) int {
	if size == 0 {
		return 0
	}

	if isHead {
		store.start = store.wrap(store.start + size)
		store.used -= size
		return 0
	}

	dst := store.distance(offset)
	src := dst + size
	moved := store.shift(dst, src, store.used-src)
	store.used -= size

	return moved
}

// shift moves n bytes from logical position src to logical position dst,
// with dst < src. Positions are relative to start.
//
// The destination always precedes the source, so copying ascending chunks is
// safe: a chunk never overwrites source bytes that have not been read yet. A
// chunk ends wherever the source or the destination window meets the capacity
// boundary, which splits the move into at most three copies.
func (store *backingStore) shift(dst, src, n int) int {
	bufferCap := store.cap()
	moved := 0

	for n > 0 {
		from := store.wrap(store.start + src)
		to := store.wrap(store.start + dst)
		chunk := min(n, bufferCap-from, bufferCap-to)

		copy(store.data[to:to+chunk], store.data[from:from+chunk])

		src += chunk
		dst += chunk
		n -= chunk
		moved += chunk
	}

	return moved
}

func (store *backingStore) reset() {
	store.start = 0
	store.used = 0
	store.pendingDeleteBytes = 0

	for i := range store.data {
		store.data[i] = 0
	}
}

func (store *backingStore) release() {
	store.data = nil
	store.start = 0
	store.used = 0
	store.pendingDeleteBytes = 0
}
