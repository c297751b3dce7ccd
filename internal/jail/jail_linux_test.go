//go:build linux

package jail

import (
	"os"
	"os/exec"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/opensandbox/gaol/pkg/gaol"
)

// runAsHelperProcess re-execs the test binary with -test.run pinned to name
// and GAOL_JAIL_TEST_HELPER=1 set, then asserts the child exited zero. Enter
// is single-shot, irreversible process-wide state (per spec §5), so every
// test that calls it drives a throwaway child rather than the test binary's
// own process.
func runAsHelperProcess(t *testing.T, name string) {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	cmd := exec.Command(exe, "-test.run=^"+name+"$", "-test.v") //nolint:gosec // exe is this same test binary, name is a hardcoded caller constant
	cmd.Env = append(os.Environ(), "GAOL_JAIL_TEST_HELPER=1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("helper process %s failed: %v\n%s", name, err, out)
	}
}

// canUnshareUserNS probes for unprivileged user-namespace support the same
// way the rest of this module's integration tests do: root always passes;
// otherwise the unprivileged_userns_clone sysctl decides, and a kernel
// without that sysctl is assumed to allow it.
func canUnshareUserNS(t *testing.T) bool {
	t.Helper()
	if os.Getuid() == 0 {
		return true
	}
	val, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone")
	if err != nil {
		// Missing on kernels that don't gate this behind a sysctl at all.
		return true
	}
	return string(val) == "1\n" || string(val) == "1"
}

func TestEnterUnsharesAndChroots(t *testing.T) {
	if !canUnshareUserNS(t) {
		t.Skip("user namespaces not available for this uid on this kernel")
	}

	// Enter mutates process-wide state (namespaces, identity, capabilities)
	// exactly once and never rolls back, so it must run in a throwaway
	// child of the test binary rather than the test process itself.
	if os.Getenv("GAOL_JAIL_TEST_HELPER") != "1" {
		runAsHelperProcess(t, "TestEnterUnsharesAndChroots")
		return
	}

	profile, err := gaol.NewProfile([]gaol.Operation{
		gaol.FileReadMetadata(gaol.Literal("/etc/hostname")),
	})
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}

	if err := Enter(profile, Options{}); err != nil {
		os.Exit(1)
	}

	if unix.Getuid() != 1 || unix.Getgid() != 1 {
		os.Exit(2)
	}
	if _, err := os.Stat("/etc/hostname"); err != nil {
		os.Exit(3)
	}
	os.Exit(0)
}
