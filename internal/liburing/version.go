//go:build linux

package liburing

import (
	"bytes"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// KernelVersion is the running kernel's major.minor.patch, probed once via
// uname(2) and cached for the process lifetime.
type KernelVersion struct {
	Major, Minor, Patch int
	ok                  bool
}

func (v KernelVersion) GTE(major, minor, patch int) bool {
	if !v.ok {
		return false
	}
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

var (
	probedVersion KernelVersion
	probeOnce     sync.Once
)

// ProbeKernelVersion returns the cached kernel version, probing uname(2) on
// first use. Used once at Context construction to decide between OP_READ
// and the OP_READV fallback for the wakeup re-arm.
func ProbeKernelVersion() KernelVersion {
	probeOnce.Do(func() {
		var uts unix.Utsname
		if err := unix.Uname(&uts); err != nil {
			return
		}
		release := string(uts.Release[:bytes.IndexByte(uts.Release[:], 0)])
		var major, minor, patch int
		n, _ := fmt.Sscanf(release, "%d.%d.%d", &major, &minor, &patch)
		if n < 2 {
			return
		}
		probedVersion = KernelVersion{Major: major, Minor: minor, Patch: patch, ok: true}
	})
	return probedVersion
}
