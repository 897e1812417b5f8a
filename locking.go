package block_ring_buffer_go

import (
	"io"
	"sync"
)

// LockingBufferManager serializes access to a BufferManager. Every call holds
// one mutex for its full duration; the lock is not reentrant.
type LockingBufferManager struct {
	manager *BufferManager
	mu      sync.Mutex
}

// NewLockingBufferManager allocates a BufferManager and wraps it.
func NewLockingBufferManager(capacity int64, opts ...Option) (*LockingBufferManager, error) {
	manager, err := New(capacity, opts...)
	if err != nil {
		return nil, err
	}

	return &LockingBufferManager{manager: manager}, nil
}

func (buffer *LockingBufferManager) GetCapacity() int64 {
	return buffer.manager.GetCapacity()
}

func (buffer *LockingBufferManager) Add(key Key, data []byte) (Stats, error) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Add(key, data)
}

func (buffer *LockingBufferManager) Delete(key Key) (Stats, error) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Delete(key)
}

func (buffer *LockingBufferManager) Get(key Key) ([]byte, error) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Get(key)
}

func (buffer *LockingBufferManager) Flush() ([]byte, error) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Flush()
}

func (buffer *LockingBufferManager) WriteTo(w io.Writer) (int64, error) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.WriteTo(w)
}

func (buffer *LockingBufferManager) Compact() (Stats, error) {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Compact()
}

func (buffer *LockingBufferManager) Stats() Stats {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Stats()
}

func (buffer *LockingBufferManager) Metrics() CompactionMetrics {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Metrics()
}

func (buffer *LockingBufferManager) Layout() []BlockInfo {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Layout()
}

func (buffer *LockingBufferManager) Keys() []Key {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Keys()
}

func (buffer *LockingBufferManager) Len() int {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Len()
}

func (buffer *LockingBufferManager) Reset() error {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Reset()
}

func (buffer *LockingBufferManager) Close() error {
	buffer.mu.Lock()
	defer buffer.mu.Unlock()

	return buffer.manager.Close()
}
