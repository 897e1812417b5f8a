package block_ring_buffer_go

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// BlockBufferInterface defines the public API for the block ring buffer.
//
// The buffer stores variable-sized blocks, each addressed by a caller supplied
// Key, inside one fixed-capacity byte region used as a ring. Blocks are laid
// out in insertion order starting at the oldest live byte and wrap at the
// capacity boundary.
//
// Notes on semantics:
//   - Add appends a block at the write position. When the block does not fit
//     in the strictly free space but would fit once delete-pending blocks are
//     reclaimed, a compaction runs first.
//   - Delete only marks a block as delete-pending. Its bytes stay in place and
//     are reported as free until a later compaction physically reclaims them.
//   - Re-adding a key whose block is delete-pending compacts the buffer and
//     then stores a brand new block for the key.
//   - Flush and WriteTo compact first, so deleted content is never emitted.
//   - Every mutating call returns the Stats observed after the call, also on
//     failure paths.
//
// BufferManager is not safe for concurrent use; LockingBufferManager wraps it
// with a single mutex held for the full duration of each call.
type BlockBufferInterface interface {
	GetCapacity() int64
	Add(key Key, data []byte) (Stats, error)
	Delete(key Key) (Stats, error)
	Get(key Key) ([]byte, error)
	Flush() ([]byte, error)
	WriteTo(w io.Writer) (int64, error)
	Compact() (Stats, error)
	Stats() Stats
	Metrics() CompactionMetrics
	Layout() []BlockInfo
	Keys() []Key
	Len() int
	Reset() error
	Close() error
}

var _ BlockBufferInterface = &BufferManager{}
var _ BlockBufferInterface = &LockingBufferManager{}
var _ io.WriterTo = &BufferManager{}
var _ io.Closer = &BufferManager{}

// Key identifies a block. At most one live block exists per key at any time.
type Key string

// ResultCode classifies the outcome of an operation.
type ResultCode int

const (
	Success ResultCode = iota
	InsufficientSpace
	DuplicateKey
	InternalIndexError
	NotFound
	AllocationError
	Closed

	// OperationError covers errors that did not originate in the buffer,
	// such as a failing io.Writer passed to WriteTo.
	OperationError
)

func (c ResultCode) String() string {
	switch c {
	case Success:
		return "Success"
	case InsufficientSpace:
		return "InsufficientSpace"
	case DuplicateKey:
		return "DuplicateKey"
	case InternalIndexError:
		return "InternalIndexError"
	case NotFound:
		return "NotFound"
	case AllocationError:
		return "AllocationError"
	case Closed:
		return "Closed"
	case OperationError:
		return "OperationError"
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

var (
	// ErrInsufficientSpace is returned by Add when the block does not fit even
	// after every delete-pending block has been reclaimed.
	ErrInsufficientSpace = errors.New("blockring: insufficient space")

	// ErrDuplicateKey is returned by Add when a live block already uses the key.
	ErrDuplicateKey = errors.New("blockring: duplicate key")

	// ErrNotFound is returned for keys that have no live block.
	ErrNotFound = errors.New("blockring: key not found")

	// ErrInternalIndex indicates the block index and the block list disagree.
	// The manager is unusable afterwards.
	ErrInternalIndex = errors.New("blockring: block index out of sync")

	// ErrAllocation is returned by New when the backing store cannot be allocated.
	ErrAllocation = errors.New("blockring: cannot allocate backing store")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("blockring: buffer is closed")
)

// CodeOf maps an error returned by this package to its ResultCode.
func CodeOf(err error) ResultCode {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, ErrInsufficientSpace):
		return InsufficientSpace
	case errors.Is(err, ErrDuplicateKey):
		return DuplicateKey
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrAllocation):
		return AllocationError
	case errors.Is(err, ErrClosed):
		return Closed
	case errors.Is(err, ErrInternalIndex):
		return InternalIndexError
	}
	return OperationError
}

// Stats reports the byte accounting of a buffer.
//
// Bytes held by delete-pending blocks are counted as free, since they are
// reclaimable: BytesFree == Capacity - BytesUsed.
type Stats struct {
	Capacity  int64
	BytesFree int64
	BytesUsed int64
}

func (s Stats) String() string {
	return fmt.Sprintf("capacity=%s free=%s used=%s",
		humanize.IBytes(uint64(s.Capacity)),
		humanize.IBytes(uint64(s.BytesFree)),
		humanize.IBytes(uint64(s.BytesUsed)),
	)
}

// BlockInfo describes one block in physical (insertion) order.
type BlockInfo struct {
	Key           Key
	Offset        int64
	Size          int64
	DeletePending bool
}
