//go:build linux && arm

package seccomp

// AUDIT_ARCH_ARM = EM_ARM(40) | __AUDIT_ARCH_LE.
const auditArch uint32 = 0x40000028
