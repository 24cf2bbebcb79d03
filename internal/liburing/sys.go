//go:build linux

package liburing

import (
	"syscall"
	"unsafe"
)

func errnoErr(e syscall.Errno) error {
	if e == 0 {
		return nil
	}
	return e
}

func mmap(length uintptr, fd int, offset int64) (unsafe.Pointer, error) {
	r1, _, errno := syscall.Syscall6(syscall.SYS_MMAP, 0, length,
		uintptr(syscall.PROT_READ|syscall.PROT_WRITE), uintptr(syscall.MAP_SHARED|syscall.MAP_POPULATE),
		uintptr(fd), uintptr(offset))
	if errno != 0 {
		return nil, errnoErr(errno)
	}
	return unsafe.Pointer(r1), nil
}

func munmap(addr unsafe.Pointer, length uintptr) error {
	_, _, errno := syscall.Syscall(syscall.SYS_MUNMAP, uintptr(addr), length, 0)
	return errnoErr(errno)
}
