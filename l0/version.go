package l0

import "github.com/blang/semver"

// Version identifies this implementation of the L0 core, reported by
// host-side tooling at startup and in structured logs. The core itself
// never reads it; it exists purely for diagnostics.
var Version = semver.MustParse("0.1.0")
