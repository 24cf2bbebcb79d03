//go:build linux

package liburing

import "unsafe"

// Opcodes used by the context. ringexec never exposes raw opcode values to
// callers; this is deliberately a small subset of the kernel's opcode space,
// not a general binding.
const (
	OpNop         uint8 = 0
	OpReadv       uint8 = 1
	OpTimeout     uint8 = 11
	OpAsyncCancel uint8 = 14
	OpRead        uint8 = 22
)

const (
	TimeoutAbs          uint32 = 1 << 0
	TimeoutETimeSuccess uint32 = 1 << 5
)

const (
	AsyncCancelAll uint32 = 1 << 0
)

// SubmissionQueueEntry mirrors struct io_uring_sqe. Field layout matches the
// kernel ABI and must not be reordered.
type SubmissionQueueEntry struct {
	OpCode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpcodeFlags uint32
	UserData    uint64
	BufIG       uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_pad2       [1]uint64
}

func (sqe *SubmissionQueueEntry) SetData(p unsafe.Pointer) {
	sqe.UserData = uint64(uintptr(p))
}

func (sqe *SubmissionQueueEntry) prepareRW(opcode uint8, fd int32, addr uint64, length uint32, offset uint64) {
	sqe.OpCode = opcode
	sqe.Flags = 0
	sqe.IoPrio = 0
	sqe.Fd = fd
	sqe.Off = offset
	sqe.Addr = addr
	sqe.Len = length
	sqe.UserData = 0
	sqe.BufIG = 0
	sqe.Personality = 0
	sqe.SpliceFdIn = 0
	sqe.OpcodeFlags = 0
	sqe.Addr3 = 0
}

// PrepareNop arms a no-op round trip through the ring: submit, kernel
// completes it immediately, no side effect beyond the trip itself.
func (sqe *SubmissionQueueEntry) PrepareNop() {
	sqe.prepareRW(OpNop, -1, 0, 0, 0)
}

// PrepareRead arms a single-buffer read, used to re-arm the wakeup eventfd.
func (sqe *SubmissionQueueEntry) PrepareRead(fd int, buf unsafe.Pointer, nbytes uint32) {
	sqe.prepareRW(OpRead, int32(fd), uint64(uintptr(buf)), nbytes, 0)
}

// PrepareReadv arms a readv fallback for kernels lacking a plain OP_READ
// against non-regular files in the version this context probed at
// construction time.
func (sqe *SubmissionQueueEntry) PrepareReadv(fd int, iovecs unsafe.Pointer, nrVecs uint32) {
	sqe.prepareRW(OpReadv, int32(fd), uint64(uintptr(iovecs)), nrVecs, 0)
}

// PrepareTimeout arms IORING_OP_TIMEOUT against a relative or absolute
// kernel timespec. flags may carry TimeoutETimeSuccess, which keeps a natural
// expiry from failing a linked chain; the completion's res is still -ETIME.
func (sqe *SubmissionQueueEntry) PrepareTimeout(ts unsafe.Pointer, flags uint32) {
	sqe.prepareRW(OpTimeout, -1, uint64(uintptr(ts)), 1, 0)
	sqe.OpcodeFlags = flags
}

// PrepareAsyncCancel arms a cancellation request against a previously
// submitted task, addressed by the same pointer value used as its
// UserData.
func (sqe *SubmissionQueueEntry) PrepareAsyncCancel(userData uint64, flags uint32) {
	sqe.prepareRW(OpAsyncCancel, -1, 0, 0, 0)
	sqe.Addr = userData
	sqe.OpcodeFlags = flags
}

// CompletionQueueEvent mirrors struct io_uring_cqe.
type CompletionQueueEvent struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

func (cqe *CompletionQueueEvent) Data() unsafe.Pointer {
	if cqe.UserData == 0 {
		return nil
	}
	return unsafe.Pointer(uintptr(cqe.UserData))
}
