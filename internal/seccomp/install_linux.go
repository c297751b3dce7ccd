//go:build linux

package seccomp

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/opensandbox/gaol/internal/bpf"
)

// InstallFilter loads prog into the kernel via the prctl sequence spec §4.3
// and §6 mandate: first PR_SET_NO_NEW_PRIVS, then PR_SET_SECCOMP with mode
// SECCOMP_MODE_FILTER pointing at a sock_fprog. Both calls must succeed;
// either failing returns a *FilterError and leaves the process un-filtered
// (the caller must treat this as fatal, never retry, and exit).
//
// This uses the raw prctl syscall via unix.RawSyscall rather than
// unix.Prctl so the sock_fprog pointer's lifetime is visible at the call
// site — the spec calls for the classic prctl(2) install path specifically,
// not the newer seccomp(2) syscall.
func InstallFilter(prog bpf.Program) error {
	if _, _, errno := unix.RawSyscall(unix.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0); errno != 0 {
		return &FilterError{Kind: NoNewPrivs, Errno: errno}
	}

	filter := make([]unix.SockFilter, len(prog))
	for i, inst := range prog {
		filter[i] = unix.SockFilter{Code: inst.Code, Jt: inst.Jt, Jf: inst.Jf, K: inst.K}
	}
	fprog := unix.SockFprog{
		Len:    uint16(len(filter)), //nolint:gosec // filter length is bounded well under 1<<16 by construction
		Filter: &filter[0],
	}

	if _, _, errno := unix.RawSyscall(unix.SYS_PRCTL, unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&fprog))); errno != 0 {
		return &FilterError{Kind: Install, Errno: errno}
	}
	return nil
}
