//go:build linux

package jail

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/opensandbox/gaol/pkg/gaol"
)

// Options controls jail construction behavior not carried by the profile
// itself.
type Options struct {
	// Debug, when set, writes a one-line trace of each step to stderr —
	// the "[gaol:jail] ..." convention used throughout this module.
	Debug bool
}

// Enter performs the seven-step sequence of spec §4.4, in order: unshare
// namespaces, establish uid/gid mapping, switch identity, build a tmpfs
// jail root, populate it per the profile's allowed operations, chroot in,
// and drop all capabilities. Any step failing aborts the sequence
// immediately with a typed *Error; Enter never retries and never unwinds a
// partially applied step, because the spec treats partial confinement as
// more dangerous than none. Callers must treat any non-nil return as fatal
// and exit the process without running further untrusted code.
func Enter(profile *gaol.Profile, opts Options) error {
	log := func(format string, args ...interface{}) {
		if opts.Debug {
			fmt.Fprintf(os.Stderr, "[gaol:jail] "+format+"\n", args...)
		}
	}

	parentUID := unix.Getuid()
	parentGID := unix.Getgid()

	flags := unix.CLONE_NEWUSER | unix.CLONE_NEWNS | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS | unix.CLONE_FS
	if !profile.AnyNetworkOutbound() {
		flags |= unix.CLONE_NEWNET
	}
	log("unshare flags=%#x (network namespace: %v)", flags, !profile.AnyNetworkOutbound())
	if err := unix.Unshare(flags); err != nil {
		return wrap(Unshare, "unshare", err)
	}

	if err := writeProcSelf("setgroups", "deny"); err != nil {
		return wrap(MapWrite, "setgroups", err)
	}
	if err := writeProcSelf("gid_map", fmt.Sprintf("1 %d 1", parentGID)); err != nil {
		return wrap(MapWrite, "gid_map", err)
	}
	if err := writeProcSelf("uid_map", fmt.Sprintf("1 %d 1", parentUID)); err != nil {
		return wrap(MapWrite, "uid_map", err)
	}
	log("uid/gid mapped: outside %d/%d -> inside 1/1", parentUID, parentGID)

	if err := unix.Setresgid(1, 1, 1); err != nil {
		return wrap(SetID, "setresgid", err)
	}
	if err := unix.Setresuid(1, 1, 1); err != nil {
		return wrap(SetID, "setresuid", err)
	}
	log("identity switched to uid/gid 1/1")

	jailRoot, err := os.MkdirTemp("", "gaol-jail-*")
	if err != nil {
		return wrap(TmpfsMount, "mkdtemp", err)
	}
	if err := unix.Mount("tmpfs", jailRoot, "tmpfs", unix.MS_NOATIME, ""); err != nil {
		return wrap(TmpfsMount, jailRoot, err)
	}
	log("jail root %s mounted as tmpfs", jailRoot)

	if err := populate(jailRoot, profile, log); err != nil {
		return err
	}

	if err := unix.Chroot(jailRoot); err != nil {
		return wrap(Chroot, jailRoot, err)
	}
	// chdir("/") rather than chdir("."): the process's cwd is still the
	// pre-chroot directory at this point, which may resolve outside
	// jailRoot, so chdir(".") would leave the cwd pointing out of the jail
	// (see DESIGN.md's Open Questions entry on this). Resetting to the new
	// root's "/" is the standard fix for that gap.
	if err := unix.Chdir("/"); err != nil {
		return wrap(Chroot, "chdir", err)
	}
	log("chrooted into %s", jailRoot)

	if err := dropCapabilities(); err != nil {
		return err
	}
	log("capabilities dropped")

	return nil
}

func writeProcSelf(name, content string) error {
	return os.WriteFile(filepath.Join("/proc/self", name), []byte(content), 0o200) //nolint:gosec // these /proc files are kernel-enforced write-once per namespace
}

// populate mirrors every FileReadAll and FileReadMetadata pattern into the
// jail via bind mount, per spec §4.4 step 5. FileReadMetadata additionally
// chmods the jail-side entry to 0 so stat still succeeds but read/open does
// not — the "name visible, content not readable" trick.
func populate(jailRoot string, profile *gaol.Profile, log func(string, ...interface{})) error {
	for _, pattern := range profile.FileReadAllPatterns() {
		if err := bindInto(jailRoot, pattern, false); err != nil {
			return err
		}
		log("bind-mounted %s (read-all)", pattern.Path())
	}
	for _, pattern := range profile.FileReadMetadataPatterns() {
		if err := bindInto(jailRoot, pattern, true); err != nil {
			return err
		}
		log("bind-mounted %s (metadata-only)", pattern.Path())
	}
	return nil
}

func bindInto(jailRoot string, pattern gaol.PathPattern, metadataOnly bool) error {
	source := pattern.Path()
	target := filepath.Join(jailRoot, source)

	info, err := os.Stat(source)
	if os.IsNotExist(err) {
		// Nothing to expose: the path stays absent inside the jail.
		return nil
	}
	if err != nil {
		return wrap(BindMount, source, err)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		return wrap(BindMount, target, err)
	}
	if info.IsDir() {
		if err := os.Mkdir(target, 0o700); err != nil && !os.IsExist(err) {
			return wrap(BindMount, target, err)
		}
	} else {
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil && !os.IsExist(err) {
			return wrap(BindMount, target, err)
		}
		if f != nil {
			_ = f.Close()
		}
	}

	if err := unix.Mount(source, target, "", unix.MS_BIND|unix.MS_REC|unix.MS_MGC_VAL, ""); err != nil {
		return wrap(BindMount, fmt.Sprintf("%s -> %s", source, target), err)
	}

	if metadataOnly {
		if err := os.Chmod(target, 0); err != nil {
			return wrap(Chmod, target, err)
		}
	}
	return nil
}

// dropCapabilities issues capset with header version 0x20080522 (the
// 64-capability VERSION_3 ABI, needing a two-element CapUserData array) and
// all-zero effective/permitted/inheritable sets, per spec §6.
func dropCapabilities() error {
	hdr := unix.CapUserHeader{Version: 0x20080522, Pid: 0}
	var data [2]unix.CapUserData
	if err := unix.Capset(&hdr, &data[0]); err != nil {
		return wrap(CapDrop, "capset", err)
	}
	return nil
}
