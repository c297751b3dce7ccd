// Package main implements gaolctl, a minimal command-line demonstration of
// the supervisor/child split gaol's core library leaves unspecified (spec
// §6): a supervisor process that loads a policy file and launches a
// sandboxed child, and a hidden re-exec entry point in that same binary
// which activates the sandbox before running the requested command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opensandbox/gaol/internal/policyfile"
	"github.com/opensandbox/gaol/internal/sandbox"
)

// Build-time variables (set via -ldflags).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// childFlag marks a re-exec'd child. It must be checked before cobra parses
// anything, the same way fence's --landlock-apply check preempts its own
// flag parser.
const childFlag = "--gaol-child"

var (
	debug      bool
	policyPath string
	showVer    bool
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == childFlag {
		os.Exit(runChild(os.Args[2:]))
	}

	rootCmd := &cobra.Command{
		Use:   "gaolctl --policy <file> -- command [args...]",
		Short: "Run a command under a gaol namespace/seccomp sandbox",
		Long: `gaolctl launches a command confined by a gaol Profile: a declarative
allow-list of filesystem reads, outbound network endpoints, and system
queries, enforced by Linux namespaces and a seccomp-BPF filter (or rejected
with UnsupportedOperation on platforms gaol has no backend for).

Example:
  gaolctl --policy ./policy.jsonc -- curl https://example.com`,
		RunE:          runSupervisor,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
	}
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "log each sandbox step to stderr")
	rootCmd.Flags().StringVarP(&policyPath, "policy", "p", "", "path to a JSONC policy file describing the Profile")
	rootCmd.Flags().BoolVarP(&showVer, "version", "v", false, "show version information")
	rootCmd.Flags().SetInterspersed(false)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gaolctl: %v\n", err)
		os.Exit(1)
	}
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	if showVer {
		fmt.Printf("gaolctl - supervisor/child demo for the gaol sandbox library\n")
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Built:   %s\n", buildTime)
		fmt.Printf("  Commit:  %s\n", gitCommit)
		return nil
	}

	if policyPath == "" {
		return fmt.Errorf("--policy is required")
	}
	if len(args) == 0 {
		return fmt.Errorf("no command specified; pass one after --")
	}

	// Loaded here too, not just in the child: a malformed policy file should
	// fail before a process is even spawned, not after.
	profile, err := policyfile.Load(policyPath)
	if err != nil {
		return fmt.Errorf("loading policy: %w", err)
	}

	if debug {
		fmt.Fprintf(os.Stderr, "[gaolctl] policy: %s\n", policyPath)
		fmt.Fprintf(os.Stderr, "[gaolctl] command: %v\n", args)
	}

	childArgs := append([]string{childFlag, policyPath, debugFlag(debug), "--"}, args...)
	sb := sandbox.New(profile, sandbox.Options{Debug: debug})
	child, err := sb.Start(childArgs...)
	if err != nil {
		return fmt.Errorf("starting sandboxed child: %w", err)
	}

	if err := child.Wait(); err != nil {
		os.Exit(exitCodeOf(err))
	}
	return nil
}

func debugFlag(on bool) string {
	if on {
		return "-d"
	}
	return "-q"
}

// runChild is the hidden re-exec entry point: activate the profile named by
// policyPath, then exec (not fork) into the requested command so the
// sandboxed process is the command itself, not a wrapper around it.
func runChild(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "gaolctl: malformed child invocation")
		return 1
	}
	if os.Getenv(sandbox.ActivateEnv) != "1" {
		fmt.Fprintln(os.Stderr, "gaolctl: refusing to activate: missing "+sandbox.ActivateEnv+" (this entry point is only meant to be reached via re-exec from runSupervisor)")
		return 1
	}

	policyPath := args[0]
	debugOn := args[1] == "-d"

	sep := 2
	for sep < len(args) && args[sep] != "--" {
		sep++
	}
	if sep >= len(args)-1 {
		fmt.Fprintln(os.Stderr, "gaolctl: malformed child invocation: no command after --")
		return 1
	}
	command := args[sep+1:]

	profile, err := policyfile.Load(policyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gaolctl: loading policy: %v\n", err)
		return 1
	}

	if err := sandbox.NewChildSandbox(profile, sandbox.Options{Debug: debugOn}).Activate(); err != nil {
		fmt.Fprintf(os.Stderr, "gaolctl: activating sandbox: %v\n", err)
		return 1
	}

	exe, err := exec.LookPath(command[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "gaolctl: %s: not found in PATH\n", command[0])
		return 1
	}
	if err := syscall.Exec(exe, command, os.Environ()); err != nil { //nolint:gosec // exe resolved via exec.LookPath above
		fmt.Fprintf(os.Stderr, "gaolctl: exec %s: %v\n", exe, err)
		return 1
	}
	return 0 // unreachable: Exec only returns on error
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if e, ok := err.(*exec.ExitError); ok { //nolint:errorlint // exec.Cmd.Wait always returns this concrete type on nonzero exit
		exitErr = e
		return exitErr.ExitCode()
	}
	return 1
}
