package catalog

import (
	"encoding/json"

	"github.com/tdxtools/tdxmodule/sigstruct"
	"github.com/tdxtools/tdxmodule/version"
)

// Module is a validated, immutable record for one discovered module blob.
// Records are constructed once per catalog build and never mutated.
type Module struct {
	// Version is the module version, parsed from the blob filename
	Version version.Version

	// Path is the location of the backing blob file
	Path string

	// SupportedCPUs is the CPU family-model set from the sigstruct,
	// stepping bits masked
	SupportedCPUs []version.CPUFamilyModel

	// Type is the module type flags from the sigstruct
	Type sigstruct.Type

	// MinTDPreservingVersion is the oldest running module version this
	// module can upgrade from while preserving TD state
	MinTDPreservingVersion version.Version

	// MinSeamldrVersions lists the minimum seamldr version per major.minor
	// line, verbatim from the metadata document. Entries are independent;
	// the list carries no global ordering.
	MinSeamldrVersions []string

	// TDXFeature0 is carried from the metadata document but not evaluated
	// by this tooling
	TDXFeature0 json.RawMessage
}

// SupportsCPU reports whether the module's sigstruct lists the given
// family-model. An empty set supports no CPU.
func (m *Module) SupportsCPU(fm version.CPUFamilyModel) bool {
	for _, s := range m.SupportedCPUs {
		if s == fm {
			return true
		}
	}
	return false
}

// Debug reports whether the module is a debug build.
func (m *Module) Debug() bool {
	return m.Type.Debug()
}
