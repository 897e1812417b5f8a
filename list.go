package block_ring_buffer_go

// blockHandle is the stable arena index of a blockRecord.
type blockHandle int

const noBlock blockHandle = -1

type blockRecord struct {
	key           Key
	offset        int
	size          int
	deletePending bool

	prev blockHandle
	next blockHandle
}

// blockList sequences records in insertion order, which is also their physical
// order in the backing store. Records live in an arena; prev and next are arena
// indices, so unlinking a record never invalidates another record's handle.
// Freed slots are recycled by later appends.
type blockList struct {
	records []blockRecord
	free    []blockHandle

	head   blockHandle
	tail   blockHandle
	length int
}

func newBlockList() *blockList {
	return &blockList{
		head: noBlock,
		tail: noBlock,
	}
}

func (list *blockList) get(handle blockHandle) *blockRecord {
	return &list.records[handle]
}

func (list *blockList) len() int {
	return list.length
}

// pushBack appends record at the tail and returns its handle.
func (list *blockList) pushBack(record blockRecord) blockHandle {
	record.prev = list.tail
	record.next = noBlock

	var handle blockHandle
	if n := len(list.free); n > 0 {
		handle = list.free[n-1]
		list.free = list.free[:n-1]
		list.records[handle] = record
	} else {
		handle = blockHandle(len(list.records))
		list.records = append(list.records, record)
	}

	if list.tail != noBlock {
		list.records[list.tail].next = handle
	}
	if list.head == noBlock {
		list.head = handle
	}
	list.tail = handle
	list.length++

	return handle
}

// remove unlinks the record and returns its slot to the arena.
func (list *blockList) remove(handle blockHandle) {
	record := &list.records[handle]

	if record.prev != noBlock {
		list.records[record.prev].next = record.next
	} else {
		list.head = record.next
	}

	if record.next != noBlock {
		list.records[record.next].prev = record.prev
	} else {
		list.tail = record.prev
	}

	*record = blockRecord{prev: noBlock, next: noBlock}
	list.free = append(list.free, handle)
	list.length--
}

// ascend calls fn for each record from head to tail until fn returns false.
func (list *blockList) ascend(fn func(handle blockHandle, record *blockRecord) bool) {
	for handle := list.head; handle != noBlock; {
		record := &list.records[handle]
		next := record.next
		if !fn(handle, record) {
			return
		}
		handle = next
	}
}

// descend calls fn for each record from tail to head until fn returns false.
// fn may remove the record it is given.
func (list *blockList) descend(fn func(handle blockHandle, record *blockRecord) bool) {
	for handle := list.tail; handle != noBlock; {
		record := &list.records[handle]
		prev := record.prev
		if !fn(handle, record) {
			return
		}
		handle = prev
	}
}

func (list *blockList) reset() {
	list.records = list.records[:0]
	list.free = list.free[:0]
	list.head = noBlock
	list.tail = noBlock
	list.length = 0
}
