package catalog

import (
	"fmt"

	"github.com/tdxtools/tdxmodule/version"
)

// DuplicateVersionError indicates that two discovered blobs declare the same
// module version. The catalog cannot decide between them, so the build fails.
type DuplicateVersionError struct {
	Version  version.Version
	Path     string
	Existing string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("duplicate module version %s: %s conflicts with %s",
		e.Version, e.Path, e.Existing)
}
