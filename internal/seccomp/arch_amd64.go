//go:build linux && amd64

package seccomp

// AUDIT_ARCH_X86_64 = EM_X86_64(62) | __AUDIT_ARCH_64BIT | __AUDIT_ARCH_LE.
const auditArch uint32 = 0xC000003E
