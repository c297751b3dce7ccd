package gaol

import "sync"

// platformExtensions is the set of PlatformSpecific.Name values the linked
// backend recognizes. A backend package would call RegisterPlatformExtension
// from an init() so that NewProfile can validate PlatformSpecific operations
// without the core policy package importing any backend; neither of the two
// current backends (internal/sandbox's Linux seccomp path or its macOS
// stub) defines an extension, so today this map stays empty outside of
// tests, and any PlatformSpecific operation is rejected at construction
// time.
var (
	extMu         sync.Mutex
	platformExtns = map[string]bool{}
)

// RegisterPlatformExtension declares that the linked backend can enforce
// the named PlatformSpecific operation. It is idempotent.
func RegisterPlatformExtension(name string) {
	extMu.Lock()
	defer extMu.Unlock()
	platformExtns[name] = true
	checkPlatformSpecific = func(op PlatformSpecific) error {
		extMu.Lock()
		ok := platformExtns[op.Name]
		extMu.Unlock()
		if !ok {
			return &PolicyError{Kind: UnsupportedOperation, Operation: "PlatformSpecific", Detail: "extension " + op.Name + " is not registered by any backend"}
		}
		return nil
	}
}
