//go:build linux && 386

package seccomp

// AUDIT_ARCH_I386 = EM_386(3) | __AUDIT_ARCH_LE.
const auditArch uint32 = 0x40000003
