// Package platform identifies which backend family the running binary was
// built for. It has no build tag of its own: OS is always known at compile
// time via runtime.GOOS, so both backends and their facade can import it
// unconditionally.
package platform

import "runtime"

// OS identifies a supported backend family.
type OS int

const (
	// Unsupported means gaol has no enforcement backend for this GOOS.
	Unsupported OS = iota
	// Linux is the namespace + seccomp-BPF backend.
	Linux
	// Darwin is the interface-only BSD/macOS-family backend.
	Darwin
)

func (o OS) String() string {
	switch o {
	case Linux:
		return "linux"
	case Darwin:
		return "darwin"
	default:
		return "unsupported"
	}
}

// Detect reports which backend family the current GOOS maps to.
func Detect() OS {
	switch runtime.GOOS {
	case "linux":
		return Linux
	case "darwin":
		return Darwin
	default:
		return Unsupported
	}
}

// IsSupported reports whether Detect's result has a registered backend.
func IsSupported() bool {
	return Detect() != Unsupported
}
