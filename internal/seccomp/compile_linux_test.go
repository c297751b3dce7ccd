//go:build linux

package seccomp

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/opensandbox/gaol/internal/bpf"
	"github.com/opensandbox/gaol/pkg/gaol"
)

func mustProfile(t *testing.T, ops ...gaol.Operation) *gaol.Profile {
	t.Helper()
	p, err := gaol.NewProfile(ops)
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p
}

// containsK reports whether some jump instruction in prog compares against
// k. Loads and returns are not counted, so a load offset (arg 0 at 16, the
// arch word at 4) cannot stand in for a syscall number of the same value.
func containsK(prog bpf.Program, k uint32) bool {
	for _, inst := range prog {
		if inst.Code&0x07 == 0x05 && inst.K == k {
			return true
		}
	}
	return false
}

func TestCompileFilterValidatesForEveryProfile(t *testing.T) {
	profiles := []*gaol.Profile{
		mustProfile(t),
		mustProfile(t, gaol.FileReadAll(gaol.Literal("/etc/hostname"))),
		mustProfile(t, gaol.FileReadMetadata(gaol.Subpath("/tmp"))),
		mustProfile(t, gaol.NetworkOutbound(gaol.Tcp(443))),
		mustProfile(t, gaol.SystemSocket()),
		mustProfile(t,
			gaol.FileReadAll(gaol.Literal("/etc/hostname")),
			gaol.NetworkOutbound(gaol.Tcp(443)),
			gaol.SystemSocket()),
	}

	for i, p := range profiles {
		prog, err := CompileFilter(p)
		if err != nil {
			t.Errorf("profile %d: CompileFilter: %v", i, err)
			continue
		}
		if err := prog.Validate(); err != nil {
			t.Errorf("profile %d: Validate: %v", i, err)
		}
	}
}

func TestCompileFilterOmitsOpenWithoutFileReadAll(t *testing.T) {
	p := mustProfile(t, gaol.FileReadMetadata(gaol.Literal("/etc/hostname")))
	prog, err := CompileFilter(p)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if containsK(prog, uint32(unix.SYS_OPEN)) { //nolint:gosec // syscall numbers are small
		t.Error("expected no open grant without FileReadAll")
	}
	if !containsK(prog, uint32(unix.SYS_STAT)) { //nolint:gosec // syscall numbers are small
		t.Error("expected stat grant for FileReadMetadata")
	}
}

func TestCompileFilterGrantsOpenWithFileReadAll(t *testing.T) {
	p := mustProfile(t, gaol.FileReadAll(gaol.Literal("/etc/hostname")))
	prog, err := CompileFilter(p)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if !containsK(prog, uint32(unix.SYS_OPEN)) { //nolint:gosec // syscall numbers are small
		t.Error("expected an open grant for FileReadAll")
	}
	if !containsK(prog, uint32(unix.SYS_IOCTL)) { //nolint:gosec // syscall numbers are small
		t.Error("expected a guarded ioctl grant for FileReadAll")
	}
}

func TestCompileFilterOmitsSocketWithoutSystemSocket(t *testing.T) {
	p := mustProfile(t, gaol.NetworkOutbound(gaol.Tcp(80)))
	prog, err := CompileFilter(p)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if containsK(prog, uint32(unix.SYS_SOCKET)) { //nolint:gosec // syscall numbers are small
		t.Error("expected no socket grant without SystemSocket")
	}
	if !containsK(prog, uint32(unix.SYS_CONNECT)) { //nolint:gosec // syscall numbers are small
		t.Error("expected connect grant for NetworkOutbound")
	}
}

func TestCompileFilterAlwaysGuardsClone(t *testing.T) {
	p := mustProfile(t)
	prog, err := CompileFilter(p)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	if !containsK(prog, uint32(unix.SYS_CLONE)) { //nolint:gosec // syscall numbers are small
		t.Error("expected a clone check even for an empty profile")
	}
	if !containsK(prog, cloneThreadMask) {
		t.Error("expected the exact thread-creation clone mask in the program")
	}
}

func TestCompileFilterEndsInKill(t *testing.T) {
	p := mustProfile(t)
	prog, err := CompileFilter(p)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	last := prog[len(prog)-1]
	if last.K != bpf.RetKill {
		t.Error("expected the program to end with a kill instruction")
	}
}
