//go:build linux

package sandbox

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/opensandbox/gaol/pkg/gaol"
)

// features describes the kernel support Activate depends on. Detected once
// and cached, the same way the teacher's feature probing worked, but
// trimmed to exactly what this engine's two subsystems need: seccomp-BPF
// and an unprivileged user namespace. Landlock, eBPF, and bwrap probing have
// no place here — this engine implements its own namespace/seccomp
// enforcement directly rather than shelling out to either.
type features struct {
	hasSeccomp  bool
	hasUserNS   bool
	kernelMajor int
	kernelMinor int
}

var (
	detected     features
	detectedOnce sync.Once
)

func detectFeatures() features {
	detectedOnce.Do(func() {
		detected.parseKernelVersion()
		detected.detectSeccomp()
		detected.detectUserNS()
	})
	return detected
}

func (f *features) parseKernelVersion() {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return
	}
	release := unix.ByteSliceToString(uname.Release[:])
	parts := strings.Split(release, ".")
	if len(parts) >= 2 {
		f.kernelMajor, _ = strconv.Atoi(parts[0])
		f.kernelMinor, _ = strconv.Atoi(strings.Split(parts[1], "-")[0])
	}
}

func (f *features) detectSeccomp() {
	// PR_GET_SECCOMP returns 0 (disabled-but-available) or EINVAL (the
	// running kernel predates seccomp) depending on kernel support; either
	// 0 or a non-EINVAL errno means the mode-filter path this engine needs
	// is present.
	_, _, errno := unix.Syscall(unix.SYS_PRCTL, unix.PR_GET_SECCOMP, 0, 0)
	f.hasSeccomp = errno != unix.EINVAL
}

func (f *features) detectUserNS() {
	data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		// Missing entirely on kernels that don't gate this behind a
		// sysctl (unprivileged user namespaces always on).
		f.hasUserNS = true
		return
	}
	f.hasUserNS = strings.TrimSpace(string(data)) == "1"
}

// checkSupported returns a *gaol.PolicyError if this host cannot provide
// the enforcement a Linux activation needs, so Activate fails fast with a
// clear diagnostic instead of partway through the jail sequence.
func checkSupported() error {
	f := detectFeatures()
	if !f.hasSeccomp {
		return &gaol.PolicyError{Kind: gaol.UnsupportedOperation, Operation: "Activate", Detail: "kernel lacks seccomp-BPF support"}
	}
	if !f.hasUserNS {
		return &gaol.PolicyError{Kind: gaol.UnsupportedOperation, Operation: "Activate", Detail: "unprivileged user namespaces are disabled on this host (see /proc/sys/kernel/unprivileged_userns_clone)"}
	}
	return nil
}
