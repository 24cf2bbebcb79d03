//go:build linux

package liburing

import (
	"sync/atomic"
	"syscall"
	"unsafe"
)

const sysSetup = 425

// mmap(2) offsets for the three regions io_uring_setup exposes on the ring
// fd. Fixed kernel ABI values, not configurable.
const (
	offSQRing int64 = 0
	offCQRing int64 = 0x8000000
	offSQEs   int64 = 0x10000000
)

// SubmissionQueue is the mmap'd view onto the kernel's SQ ring plus the
// process-local sqeHead/sqeTail that track what this process has produced
// but not yet published via a release-store to *tail.
type SubmissionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	flags       *uint32
	array       *uint32
	sqes        *SubmissionQueueEntry

	sqeHead uint32
	sqeTail uint32

	ringPtr  unsafe.Pointer
	ringSize uintptr
	sqesSize uintptr
}

type CompletionQueue struct {
	head        *uint32
	tail        *uint32
	ringMask    *uint32
	ringEntries *uint32
	cqes        *CompletionQueueEvent

	ringPtr  unsafe.Pointer
	ringSize uintptr
}

type Ring struct {
	sq    SubmissionQueue
	cq    CompletionQueue
	flags uint32
	fd    int
}

// Setup performs io_uring_setup(2) and mmaps the three shared regions: the
// SQ ring, the CQ ring, and the SQE array. entries is rounded up to the next
// power of two, matching the kernel's own requirement.
func Setup(entries uint32, flags uint32) (*Ring, error) {
	entries = RoundupPow2(entries)

	params := &Params{Flags: flags}
	fdPtr, _, errno := syscall.Syscall(sysSetup, uintptr(entries), uintptr(unsafe.Pointer(params)), 0)
	if errno != 0 {
		return nil, errnoErr(errno)
	}
	fd := int(fdPtr)

	ring := &Ring{flags: params.Flags, fd: fd}

	sqSize := uintptr(params.SqOff.Array) + uintptr(params.SqEntries)*unsafe.Sizeof(uint32(0))
	sqPtr, err := mmap(sqSize, fd, offSQRing)
	if err != nil {
		_ = syscall.Close(fd)
		return nil, err
	}
	ring.sq.ringPtr = sqPtr
	ring.sq.ringSize = sqSize
	ring.sq.head = (*uint32)(unsafe.Add(sqPtr, params.SqOff.Head))
	ring.sq.tail = (*uint32)(unsafe.Add(sqPtr, params.SqOff.Tail))
	ring.sq.ringMask = (*uint32)(unsafe.Add(sqPtr, params.SqOff.RingMask))
	ring.sq.ringEntries = (*uint32)(unsafe.Add(sqPtr, params.SqOff.RingEntries))
	ring.sq.flags = (*uint32)(unsafe.Add(sqPtr, params.SqOff.Flags))
	ring.sq.array = (*uint32)(unsafe.Add(sqPtr, params.SqOff.Array))

	cqSize := uintptr(params.CqOff.Cqes) + uintptr(params.CqEntries)*unsafe.Sizeof(CompletionQueueEvent{})
	cqPtr, err := mmap(cqSize, fd, offCQRing)
	if err != nil {
		_ = munmap(sqPtr, sqSize)
		_ = syscall.Close(fd)
		return nil, err
	}
	ring.cq.ringPtr = cqPtr
	ring.cq.ringSize = cqSize
	ring.cq.head = (*uint32)(unsafe.Add(cqPtr, params.CqOff.Head))
	ring.cq.tail = (*uint32)(unsafe.Add(cqPtr, params.CqOff.Tail))
	ring.cq.ringMask = (*uint32)(unsafe.Add(cqPtr, params.CqOff.RingMask))
	ring.cq.ringEntries = (*uint32)(unsafe.Add(cqPtr, params.CqOff.RingEntries))
	ring.cq.cqes = (*CompletionQueueEvent)(unsafe.Add(cqPtr, params.CqOff.Cqes))

	sqesSize := uintptr(params.SqEntries) * unsafe.Sizeof(SubmissionQueueEntry{})
	sqesPtr, err := mmap(sqesSize, fd, offSQEs)
	if err != nil {
		_ = munmap(sqPtr, sqSize)
		_ = munmap(cqPtr, cqSize)
		_ = syscall.Close(fd)
		return nil, err
	}
	ring.sq.sqes = (*SubmissionQueueEntry)(sqesPtr)
	ring.sq.sqesSize = sqesSize

	for i := uint32(0); i < params.SqEntries; i++ {
		*(*uint32)(unsafe.Add(unsafe.Pointer(ring.sq.array), uintptr(i)*unsafe.Sizeof(uint32(0)))) = i
	}

	return ring, nil
}

func (ring *Ring) Fd() int { return ring.fd }

func (ring *Ring) Close() error {
	_ = munmap(unsafe.Pointer(ring.sq.sqes), ring.sq.sqesSize)
	_ = munmap(ring.cq.ringPtr, ring.cq.ringSize)
	if ring.cq.ringPtr != ring.sq.ringPtr {
		_ = munmap(ring.sq.ringPtr, ring.sq.ringSize)
	}
	return syscall.Close(ring.fd)
}

// GetSQE returns the next free SQE slot, or nil if the ring has no free
// slots left (tail - head would exceed entries).
func (ring *Ring) GetSQE() *SubmissionQueueEntry {
	sq := &ring.sq
	head := atomic.LoadUint32(sq.head)
	next := sq.sqeTail + 1
	if next-head > *sq.ringEntries {
		return nil
	}
	idx := sq.sqeTail & *sq.ringMask
	sqe := (*SubmissionQueueEntry)(unsafe.Add(unsafe.Pointer(sq.sqes), uintptr(idx)*unsafe.Sizeof(SubmissionQueueEntry{})))
	sq.sqeTail = next
	return sqe
}

func (ring *Ring) SQReady() uint32 {
	return ring.sq.sqeTail - *ring.sq.head
}

func (ring *Ring) SQSpaceLeft() uint32 {
	return *ring.sq.ringEntries - ring.SQReady()
}

// flushSQ publishes the locally produced SQEs to the kernel with a
// release-store on the tail, and returns the number of entries now visible
// to the kernel but not yet consumed.
func (ring *Ring) flushSQ() uint32 {
	sq := &ring.sq
	tail := sq.sqeTail
	if sq.sqeHead != tail {
		sq.sqeHead = tail
		atomic.StoreUint32(sq.tail, tail)
	}
	return tail - atomic.LoadUint32(sq.head)
}

// Enter issues io_uring_enter(2).
func (ring *Ring) Enter(toSubmit, minComplete, flags uint32) (uint, error) {
	const sysEnter = 426
	n, _, errno := syscall.Syscall6(sysEnter, uintptr(ring.fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, errnoErr(errno)
	}
	return uint(n), nil
}

const EnterGetEvents uint32 = 1 << 0

// SubmitAndWait flushes the locally queued SQEs and calls io_uring_enter,
// retrying transparently on EINTR. minComplete is passed straight through
// to the kernel as the wait threshold.
func (ring *Ring) SubmitAndWait(minComplete uint32) (int, error) {
	submitted := ring.flushSQ()
	flags := uint32(0)
	if minComplete > 0 {
		flags |= EnterGetEvents
	}
	for {
		n, err := ring.Enter(submitted, minComplete, flags)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return int(n), nil
	}
}

func (ring *Ring) CQReady() uint32 {
	return atomic.LoadUint32(ring.cq.tail) - *ring.cq.head
}

// PeekBatchCQE copies up to len(out) ready CQEs without advancing the CQ
// head; the caller must call CQAdvance with the number it actually consumed.
func (ring *Ring) PeekBatchCQE(out []CompletionQueueEvent) int {
	cq := &ring.cq
	ready := ring.CQReady()
	n := uint32(len(out))
	if ready < n {
		n = ready
	}
	head := *cq.head
	for i := uint32(0); i < n; i++ {
		idx := (head + i) & *cq.ringMask
		out[i] = *(*CompletionQueueEvent)(unsafe.Add(unsafe.Pointer(cq.cqes), uintptr(idx)*unsafe.Sizeof(CompletionQueueEvent{})))
	}
	return int(n)
}

// CQAdvance releases n consumed CQEs back to the kernel with a
// release-store on the head.
func (ring *Ring) CQAdvance(n uint32) {
	atomic.StoreUint32(ring.cq.head, *ring.cq.head+n)
}
