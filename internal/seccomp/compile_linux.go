//go:build linux

// Package seccomp compiles a *gaol.Profile into a classic-BPF seccomp
// program and installs it via the two-call prctl sequence the kernel
// requires. It consults the profile exclusively through the query methods
// in pkg/gaol — never caching a derived subset, per the profile's own
// invariant.
package seccomp

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/opensandbox/gaol/internal/bpf"
	"github.com/opensandbox/gaol/pkg/gaol"
)

// openFlagsAllowed is the bitmask open's flags argument (arg 1) must be a
// subset of for FileReadAll's open grant: read-only, non-blocking,
// non-controlling-terminal, close-on-exec. Computed from the platform's own
// unix constants rather than hardcoded, so it is correct per architecture —
// resolving the spec's own flagged open question about recomputing the mask
// on non-amd64 targets.
var openFlagsAllowed = uint32(unix.O_RDONLY | unix.O_CLOEXEC | unix.O_NOCTTY | unix.O_NONBLOCK) //nolint:gosec // constants are small

// cloneThreadMask is the exact flag combination Go's and libc's runtimes use
// to create an ordinary thread. clone is allowed only on an exact match;
// any other combination (including a subset) denies fork.
var cloneThreadMask = uint32(unix.CLONE_VM | unix.CLONE_FS | unix.CLONE_FILES | unix.CLONE_SIGHAND | //nolint:gosec // constants are small
	unix.CLONE_THREAD | unix.CLONE_SYSVSEM | unix.CLONE_SETTLS | unix.CLONE_PARENT_SETTID | unix.CLONE_CHILD_CLEARTID)

// alwaysAllowed is the fixed, policy-independent syscall set required for
// ordinary runtime and allocator operation (spec §6). Syscall 318 is named
// explicitly as getrandom per the spec's own open question, rather than
// left as an "unknown" numeric literal; on non-amd64 architectures
// unix.SYS_GETRANDOM resolves to the architecture-correct number instead of
// 318 verbatim.
var alwaysAllowed = []uintptr{
	unix.SYS_READ,
	unix.SYS_WRITE,
	unix.SYS_CLOSE,
	unix.SYS_POLL,
	unix.SYS_MMAP,
	unix.SYS_MPROTECT,
	unix.SYS_MUNMAP,
	unix.SYS_BRK,
	unix.SYS_RT_SIGRETURN,
	unix.SYS_MADVISE,
	unix.SYS_RECVFROM,
	unix.SYS_RECVMSG,
	unix.SYS_EXIT,
	unix.SYS_GETUID,
	unix.SYS_SIGALTSTACK,
	unix.SYS_FUTEX,
	unix.SYS_SCHED_GETAFFINITY,
	unix.SYS_EXIT_GROUP,
	unix.SYS_SENDMMSG,
	unix.SYS_GETRANDOM,
	unix.SYS_SET_ROBUST_LIST,
	unix.SYS_SENDTO,
}

// CompileFilter translates profile into a BPF program following the
// five-step algorithm of spec §4.3: architecture prologue, always-allowed
// table, conditional grants derived from the profile's queries, the exact
// clone-mask check, and a terminal kill epilogue. The returned program is
// self-validated (P6) before CompileFilter returns it.
func CompileFilter(profile *gaol.Profile) (bpf.Program, error) {
	a := bpf.New()

	a.EmitLoadArch()
	a.KillUnless(auditArch)

	for _, nr := range alwaysAllowed {
		allowSyscall(a, nr)
	}

	if profile.AnyFileReadMetadata() {
		for _, nr := range []uintptr{unix.SYS_STAT, unix.SYS_FSTAT, unix.SYS_ACCESS, unix.SYS_READLINK} {
			allowSyscall(a, nr)
		}
	}

	if profile.AnyFileReadAll() {
		allowSyscall(a, unix.SYS_LSEEK)

		a.EmitLoadSyscallNR()
		a.IfEqual(uint32(unix.SYS_OPEN), func(a *bpf.Assembler) { //nolint:gosec // syscall numbers are small
			a.EmitLoadArg(1)
			a.IfMaskZero(^openFlagsAllowed, func(a *bpf.Assembler) {
				a.EmitAllow()
			})
		})

		a.EmitLoadSyscallNR()
		a.IfEqual(uint32(unix.SYS_IOCTL), func(a *bpf.Assembler) { //nolint:gosec // syscall numbers are small
			a.EmitLoadArg(1)
			a.IfEqual(uint32(unix.FIONREAD), func(a *bpf.Assembler) { //nolint:gosec // ioctl request codes are small
				a.EmitAllow()
			})
		})
	}

	if profile.AnyNetworkOutbound() {
		allowSyscall(a, unix.SYS_BIND)
		allowSyscall(a, unix.SYS_CONNECT)
	}

	if profile.AnySystemSocket() {
		allowSyscall(a, unix.SYS_GETSOCKNAME)

		a.EmitLoadSyscallNR()
		a.IfEqual(uint32(unix.SYS_SOCKET), func(a *bpf.Assembler) { //nolint:gosec // syscall numbers are small
			for _, family := range []uint32{unix.AF_UNIX, unix.AF_INET, unix.AF_INET6} {
				a.EmitLoadArg(0)
				a.IfEqual(family, func(a *bpf.Assembler) {
					a.EmitAllow()
				})
			}
			a.EmitLoadArg(0)
			a.IfEqual(uint32(unix.AF_NETLINK), func(a *bpf.Assembler) { //nolint:gosec // address families are small
				a.EmitLoadArg(2)
				a.IfEqual(uint32(unix.NETLINK_ROUTE), func(a *bpf.Assembler) { //nolint:gosec // protocol numbers are small
					a.EmitAllow()
				})
			})
		})
	}

	// clone is allowed unconditionally (not gated on any profile query) but
	// only with the exact ordinary-thread flag mask; every other value,
	// including fork's zero flags, falls through to the epilogue kill.
	a.EmitLoadSyscallNR()
	a.IfEqual(uint32(unix.SYS_CLONE), func(a *bpf.Assembler) { //nolint:gosec // syscall numbers are small
		a.EmitLoadArg(0)
		a.IfEqual(cloneThreadMask, func(a *bpf.Assembler) {
			a.EmitAllow()
		})
	})

	a.EmitKill()

	prog := bpf.Program(a.Program())
	if err := prog.Validate(); err != nil {
		return nil, fmt.Errorf("gaol: compiled filter failed self-validation: %w", err)
	}
	return prog, nil
}

func allowSyscall(a *bpf.Assembler, nr uintptr) {
	a.EmitLoadSyscallNR()
	a.IfEqual(uint32(nr), func(a *bpf.Assembler) { //nolint:gosec // syscall numbers are small
		a.EmitAllow()
	})
}
