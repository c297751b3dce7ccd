// Package sandbox is the backend facade of spec §4.5: a single activation
// entry point composing the jail builder and the seccomp filter compiler in
// the order correctness requires, behind a platform-neutral API that hides
// which backend (Linux or the BSD/macOS-family stub) actually runs.
package sandbox

import (
	"github.com/opensandbox/gaol/internal/platform"
	"github.com/opensandbox/gaol/pkg/gaol"
)

// Options controls activation behavior not carried by the profile itself.
type Options struct {
	// Debug enables the "[gaol:...]" stderr trace used throughout this
	// module's backends. Successful activation is otherwise silent, per
	// spec §7.
	Debug bool
}

// ChildSandbox is the one-shot, child-side activation handle described by
// spec §6: constructed from a Profile, consumed exactly once by Activate.
// There is no way to widen its Profile after construction and no way to
// deactivate after Activate returns nil.
type ChildSandbox struct {
	profile   *gaol.Profile
	opts      Options
	activated bool
}

// NewChildSandbox returns a ChildSandbox that will enforce profile when
// Activate is called.
func NewChildSandbox(profile *gaol.Profile, opts Options) *ChildSandbox {
	return &ChildSandbox{profile: profile, opts: opts}
}

// Activate performs the platform's full kernel-transition sequence exactly
// once: on Linux, jail.Enter followed by the seccomp filter compile-and-
// install; elsewhere, whatever the platform-specific backend can provide
// (see macos_darwin.go and activate_unsupported.go). Calling Activate a second time is a programming
// error reported as a *gaol.PolicyError rather than re-running any kernel
// transition — every step in §4.4/§4.3 mutates global process state exactly
// once and none of them are idempotent.
func (c *ChildSandbox) Activate() error {
	if c.activated {
		return &gaol.PolicyError{Kind: gaol.UnsupportedOperation, Operation: "Activate", Detail: "sandbox already activated; activation is one-shot"}
	}
	c.activated = true
	return activate(c.profile, c.opts)
}

// Detect reports which backend family Activate will use on this platform.
func Detect() platform.OS { return platform.Detect() }
