package block_ring_buffer_go

import (
	"bytes"
	"errors"
	"testing"
)

func TestBufferManager(t *testing.T) {
	// Helper function to create a new buffer
	newBuffer := func(t *testing.T, capacity int64) *BufferManager {
		buffer, err := New(capacity)
		if err != nil {
			t.Fatalf("expected to allocate %d bytes, error: %v", capacity, err)
		}
		return buffer
	}

	// Test: Two blocks flushed in insertion order
	t.Run("Basic Two Blocks", func(t *testing.T) {
		buffer := newBuffer(t, 100)

		msg1 := []byte("Buf msg1\n")
		msg2 := []byte("Buf msg2\n")

		if _, err := buffer.Add("msg1", msg1); err != nil {
			t.Fatalf("expected to add msg1, error: %v", err)
		}
		stats, err := buffer.Add("msg2", msg2)
		if err != nil {
			t.Fatalf("expected to add msg2, error: %v", err)
		}
		if stats.BytesUsed != 18 || stats.BytesFree != 82 || stats.Capacity != 100 {
			t.Fatalf("unexpected stats: %+v", stats)
		}

		out, err := buffer.Flush()
		if err != nil || string(out) != "Buf msg1\nBuf msg2\n" {
			t.Fatalf("expected both messages, got %q, error: %v", out, err)
		}
	})

	// Test: Delete, re-add and replace with compaction at capacity
	t.Run("Delete Block", func(t *testing.T) {
		buffer := newBuffer(t, 18)

		msg3 := []byte("Buf msg3\n")
		msg4 := []byte("Buf msg4\n")
		msg5 := []byte("Buf msg5\n")

		expectUsed := func(step string, stats Stats, err error, used int64) {
			t.Helper()
			if err != nil {
				t.Fatalf("%s: expected success, error: %v", step, err)
			}
			if stats.BytesUsed != used {
				t.Fatalf("%s: expected %d bytes used, got %d", step, used, stats.BytesUsed)
			}
			if stats.BytesFree != 18-used {
				t.Fatalf("%s: expected %d bytes free, got %d", step, 18-used, stats.BytesFree)
			}
		}

		stats, err := buffer.Add("msg3", msg3)
		expectUsed("add msg3", stats, err, 9)

		stats, err = buffer.Add("msg4", msg4)
		expectUsed("add msg4", stats, err, 18)

		out, _ := buffer.Flush()
		if string(out) != "Buf msg3\nBuf msg4\n" {
			t.Fatalf("expected msg3, msg4, got %q", out)
		}

		stats, err = buffer.Delete("msg3")
		expectUsed("delete msg3", stats, err, 9)

		stats, err = buffer.Add("msg3", msg3)
		expectUsed("re-add msg3", stats, err, 18)

		out, _ = buffer.Flush()
		if string(out) != "Buf msg4\nBuf msg3\n" {
			t.Fatalf("expected msg4, msg3, got %q", out)
		}

		stats, err = buffer.Delete("msg4")
		expectUsed("delete msg4", stats, err, 9)

		stats, err = buffer.Add("msg5", msg5)
		expectUsed("add msg5", stats, err, 18)

		out, _ = buffer.Flush()
		if string(out) != "Buf msg3\nBuf msg5\n" {
			t.Fatalf("expected msg3, msg5, got %q", out)
		}
	})

	// Test: Duplicate live key is rejected
	t.Run("Duplicate Key", func(t *testing.T) {
		buffer := newBuffer(t, 10)

		if _, err := buffer.Add("a", []byte("abc")); err != nil {
			t.Fatalf("expected to add a, error: %v", err)
		}

		stats, err := buffer.Add("a", []byte("xyz"))
		if !errors.Is(err, ErrDuplicateKey) || CodeOf(err) != DuplicateKey {
			t.Fatalf("expected duplicate key, error: %v", err)
		}
		if stats.BytesUsed != 3 {
			t.Fatalf("expected stats to reflect existing block, got %+v", stats)
		}

		p, err := buffer.Get("a")
		if err != nil || string(p) != "abc" {
			t.Fatalf("expected existing block untouched, got %q, error: %v", p, err)
		}
	})

	// Test: Exactly free bytes fits, one more does not
	t.Run("Free Space Boundary", func(t *testing.T) {
		buffer := newBuffer(t, 8)

		if _, err := buffer.Add("a", []byte("abc")); err != nil {
			t.Fatalf("expected to add a, error: %v", err)
		}

		stats, err := buffer.Add("b", []byte("123456"))
		if CodeOf(err) != InsufficientSpace {
			t.Fatalf("expected insufficient space, error: %v", err)
		}
		if stats.BytesUsed != 3 {
			t.Fatalf("expected state unchanged, got %+v", stats)
		}

		stats, err = buffer.Add("b", []byte("12345"))
		if err != nil || stats.BytesFree != 0 {
			t.Fatalf("expected exact fit, stats %+v, error: %v", stats, err)
		}
	})

	// Test: Add larger than free plus pending fails without compacting
	t.Run("Insufficient Even After Reclaim", func(t *testing.T) {
		buffer := newBuffer(t, 10)

		buffer.Add("a", []byte("aaaa"))
		buffer.Add("b", []byte("bbbb"))
		buffer.Delete("a")

		_, err := buffer.Add("c", []byte("ccccccccc"))
		if !errors.Is(err, ErrInsufficientSpace) {
			t.Fatalf("expected insufficient space, error: %v", err)
		}

		layout := buffer.Layout()
		if len(layout) != 2 || !layout[0].DeletePending {
			t.Fatalf("expected pending block to survive a failed add, layout: %+v", layout)
		}
	})

	// Test: Delete of unknown key
	t.Run("Delete Missing Key", func(t *testing.T) {
		buffer := newBuffer(t, 10)

		_, err := buffer.Delete("missing")
		if CodeOf(err) != NotFound {
			t.Fatalf("expected not found, error: %v", err)
		}

		ignoring, _ := New(10, WithMissingKeyPolicy(MissingKeyIgnore))
		stats, err := ignoring.Delete("missing")
		if err != nil || stats.BytesFree != 10 {
			t.Fatalf("expected silent success, stats %+v, error: %v", stats, err)
		}
	})

	// Test: Deleting twice does not double count
	t.Run("Delete Pending Key Twice", func(t *testing.T) {
		buffer := newBuffer(t, 10)

		buffer.Add("a", []byte("aaaa"))
		buffer.Delete("a")

		stats, err := buffer.Delete("a")
		if CodeOf(err) != NotFound {
			t.Fatalf("expected not found for pending key, error: %v", err)
		}
		if stats.BytesUsed != 0 || buffer.store.pendingDeleteBytes != 4 {
			t.Fatalf("expected pending bytes counted once, stats %+v, pending %d", stats, buffer.store.pendingDeleteBytes)
		}
	})

	// Test: Write through the capacity boundary
	t.Run("WriteTo Across Boundary", func(t *testing.T) {
		buffer := newBuffer(t, 8)

		buffer.Add("a", []byte("12345"))
		buffer.Add("b", []byte("67"))
		buffer.Delete("a")
		buffer.Add("c", []byte("ABCD"))

		var out bytes.Buffer
		n, err := buffer.WriteTo(&out)
		if err != nil || n != 6 || out.String() != "67ABCD" {
			t.Fatalf("expected 67ABCD, got %q (%d), error: %v", out.String(), n, err)
		}

		p, err := buffer.Get("c")
		if err != nil || string(p) != "ABCD" {
			t.Fatalf("expected wrapped block ABCD, got %q, error: %v", p, err)
		}
	})

	// Test: Operations after close
	t.Run("Closed Buffer", func(t *testing.T) {
		buffer := newBuffer(t, 8)
		buffer.Add("a", []byte("abc"))

		if err := buffer.Close(); err != nil {
			t.Fatalf("expected close to succeed, error: %v", err)
		}

		if _, err := buffer.Add("b", []byte("x")); !errors.Is(err, ErrClosed) {
			t.Fatalf("expected closed error on add, error: %v", err)
		}
		if _, err := buffer.Flush(); CodeOf(err) != Closed {
			t.Fatalf("expected closed error on flush, error: %v", err)
		}
		if buffer.Len() != 0 || buffer.Stats().BytesUsed != 0 {
			t.Fatalf("expected released buffer to be empty")
		}
	})

	// Test: Reset empties the buffer
	t.Run("Reset Buffer", func(t *testing.T) {
		buffer := newBuffer(t, 8)
		buffer.Add("a", []byte("abcde"))
		buffer.Delete("a")
		buffer.Add("b", []byte("xyz"))

		if err := buffer.Reset(); err != nil {
			t.Fatalf("expected reset to succeed, error: %v", err)
		}
		if buffer.Len() != 0 || buffer.Stats().BytesFree != 8 || buffer.store.start != 0 {
			t.Fatalf("expected empty buffer after reset, stats %+v", buffer.Stats())
		}

		if _, err := buffer.Add("a", []byte("12345678")); err != nil {
			t.Fatalf("expected full-capacity add after reset, error: %v", err)
		}
	})
}

func TestNewAllocationError(t *testing.T) {
	for _, capacity := range []int64{0, -1, MaxCapacity + 1} {
		buffer, err := New(capacity)
		if buffer != nil || CodeOf(err) != AllocationError {
			t.Fatalf("capacity %d: expected allocation error, error: %v", capacity, err)
		}
	}
}

func TestInternalIndexErrorPoisonsManager(t *testing.T) {
	buffer, _ := New(16)
	buffer.Add("a", []byte("aaaa"))
	buffer.Add("b", []byte("bbbb"))
	buffer.Delete("a")

	// Desynchronize: drop the pending key from the index behind the list's back.
	if err := buffer.index.remove("a"); err != nil {
		t.Fatalf("expected to remove indexed key, error: %v", err)
	}

	_, err := buffer.Compact()
	if CodeOf(err) != InternalIndexError {
		t.Fatalf("expected internal index error, error: %v", err)
	}

	if _, err := buffer.Add("c", []byte("c")); !errors.Is(err, ErrInternalIndex) {
		t.Fatalf("expected manager to stay unusable, error: %v", err)
	}

	if err := buffer.Reset(); err != nil {
		t.Fatalf("expected reset to succeed, error: %v", err)
	}
	if _, err := buffer.Add("c", []byte("c")); err != nil {
		t.Fatalf("expected reset to recover the manager, error: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestCodeOfForeignError(t *testing.T) {
	buffer, _ := New(8)
	buffer.Add("a", []byte("aaaa"))

	_, err := buffer.WriteTo(failingWriter{})
	if err == nil {
		t.Fatalf("expected writer error")
	}
	if code := CodeOf(err); code != OperationError {
		t.Fatalf("expected %s, got %s", OperationError, code)
	}

	// A writer failure does not poison the manager.
	if _, err := buffer.Add("b", []byte("b")); err != nil {
		t.Fatalf("expected manager to stay usable, error: %v", err)
	}
}

func TestWithMetricsDisabled(t *testing.T) {
	buffer, _ := New(8, WithMetrics(false))
	buffer.Add("a", []byte("aaaa"))
	buffer.Add("b", []byte("bbbb"))
	buffer.Delete("a")

	if _, err := buffer.Compact(); err != nil {
		t.Fatalf("expected compaction to succeed, error: %v", err)
	}
	if metrics := buffer.Metrics(); metrics != (CompactionMetrics{}) {
		t.Fatalf("expected zero metrics, got %+v", metrics)
	}
	if err := buffer.Reset(); err != nil {
		t.Fatalf("expected reset to succeed, error: %v", err)
	}

	enabled, _ := New(8)
	enabled.Add("a", []byte("aaaa"))
	enabled.Add("b", []byte("bbbb"))
	enabled.Delete("a")
	enabled.Compact()
	if enabled.Metrics().Passes != 1 {
		t.Fatalf("expected one recorded pass, got %+v", enabled.Metrics())
	}
}
