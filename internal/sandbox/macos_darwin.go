//go:build darwin

package sandbox

import (
	"fmt"
	"strings"

	"github.com/opensandbox/gaol/pkg/gaol"
)

// This file is the BSD/macOS-family backend the spec explicitly scopes as
// "only its interface contract to the policy layer matters" — it must
// compile, accept a *gaol.Profile, and return UnsupportedOperation rather
// than silently widen access; actual enforcement is out of scope. generate
// SBPL is kept as real, working profile-generation logic (grounded in the
// same Apple Sandbox Profile Language other sandboxing tools in this corpus
// emit via sandbox-exec) because the interface contract includes producing
// something a future in-process activation path could hand to
// sandbox_init(3) — but gaol has no cgo binding to that call, so Activate
// always reports UnsupportedOperation here rather than pretending to
// enforce what it cannot.
func activate(profile *gaol.Profile, _ Options) error {
	_ = generateSBPL(profile)
	return &gaol.PolicyError{
		Kind:      gaol.UnsupportedOperation,
		Operation: "Activate",
		Detail:    "the macOS backend has no in-process enforcement path (no cgo binding to sandbox_init); see generateSBPL for the profile this platform would need",
	}
}

// generateSBPL renders profile as an Apple Sandbox Profile Language program:
// deny by default, then allow the file-read, sysctl-read and network
// operations the profile grants. Network access is allowed as a whole, not
// per endpoint pattern. It is never executed by this package — no equivalent
// of Linux's in-process seccomp install exists here without cgo — but it is
// real, syntactically complete SBPL a caller embedding sandbox_init (or
// shelling to sandbox-exec, outside this library's scope) could use.
func generateSBPL(profile *gaol.Profile) string {
	var b strings.Builder
	b.WriteString("(version 1)\n(deny default)\n")

	for _, pattern := range profile.FileReadAllPatterns() {
		writeReadRule(&b, "file-read*", pattern)
	}
	for _, pattern := range profile.FileReadMetadataPatterns() {
		writeReadRule(&b, "file-read-metadata", pattern)
	}
	if profile.AnyNetworkOutbound() {
		b.WriteString("(allow network-outbound)\n")
	}
	if profile.AnySystemInfoRead() {
		b.WriteString("(allow sysctl-read)\n")
	}
	return b.String()
}

func writeReadRule(b *strings.Builder, op string, pattern gaol.PathPattern) {
	if pattern.IsSubpath() {
		fmt.Fprintf(b, "(allow %s (subpath %q))\n", op, pattern.Path())
	} else {
		fmt.Fprintf(b, "(allow %s (literal %q))\n", op, pattern.Path())
	}
}
