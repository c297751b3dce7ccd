package sandbox

import (
	"testing"

	"github.com/opensandbox/gaol/internal/platform"
)

func TestDetectMatchesPlatformDetect(t *testing.T) {
	if Detect() != platform.Detect() {
		t.Errorf("sandbox.Detect() = %v, want %v", Detect(), platform.Detect())
	}
}
