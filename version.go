package statekit

import _ "embed"

// Version is the release of this module, as recorded in the VERSION file.
//
//go:embed VERSION
var Version string
