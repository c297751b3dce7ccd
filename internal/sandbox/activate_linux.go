//go:build linux

package sandbox

import (
	"github.com/opensandbox/gaol/internal/jail"
	"github.com/opensandbox/gaol/internal/seccomp"
	"github.com/opensandbox/gaol/pkg/gaol"
)

// activate composes §4.4 then §4.3, in that order: the jail must be built
// while /proc/self/*_map is still writable and before capabilities are
// dropped, and seccomp must install last because its filter denies syscalls
// the jail builder itself needs (mount, chroot, and prctl: the compiled
// filter allows no prctl call at all, so the install calls run before it
// takes effect).
func activate(profile *gaol.Profile, opts Options) error {
	if err := checkSupported(); err != nil {
		return err
	}

	if err := jail.Enter(profile, jail.Options{Debug: opts.Debug}); err != nil {
		return err
	}

	prog, err := seccomp.CompileFilter(profile)
	if err != nil {
		return err
	}
	return seccomp.InstallFilter(prog)
}
