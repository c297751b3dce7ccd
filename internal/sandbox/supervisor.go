package sandbox

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/opensandbox/gaol/pkg/gaol"
)

// ActivateEnv is the environment variable a re-exec'd child checks to know
// it should call ChildSandbox.Activate before running user code. This is
// the thin supervisor-side collaborator spec §6 sketches as "out of core
// scope" — the actual command-launcher a caller writes is free to use any
// re-exec mechanism it likes; this is cmd/gaolctl's choice of one.
const ActivateEnv = "GAOL_ACTIVATE"

// Sandbox is the supervisor-side handle spec §6 sketches: it re-executes
// the current binary with ActivateEnv set, and the re-exec'd process is
// expected to call ChildSandbox.Activate(profile) before running user code.
// This type is not part of the core engine (§2's six components); it exists
// only as a minimal, explicit demonstration of the collaborator the spec
// declines to specify.
type Sandbox struct {
	profile *gaol.Profile
	opts    Options
}

// New returns a Sandbox that will enforce profile in re-exec'd children.
func New(profile *gaol.Profile, opts Options) *Sandbox {
	return &Sandbox{profile: profile, opts: opts}
}

// Start re-executes the current binary with args, setting ActivateEnv so
// the child knows to activate before running user code, and returns the
// running *exec.Cmd. The child side of this contract is cmd/gaolctl's
// hidden re-exec entry point, not anything in this package.
func (s *Sandbox) Start(args ...string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("gaol: resolving own executable: %w", err)
	}

	cmd := exec.Command(exe, args...) //nolint:gosec // exe is this process's own verified executable path
	cmd.Env = append(os.Environ(), ActivateEnv+"=1")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("gaol: starting sandboxed child: %w", err)
	}
	return cmd, nil
}
