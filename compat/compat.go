// Package compat decides whether a cataloged TDX module can run on, and be
// loaded onto, the platform described by a state snapshot.
//
// All predicates are pure over their inputs: a missing snapshot field or a
// malformed version string makes the module incompatible, never the process
// fail. The debug override is an explicit argument so callers thread it
// through rather than consult shared state.
package compat

import (
	"github.com/tdxtools/tdxmodule/catalog"
	"github.com/tdxtools/tdxmodule/platform"
	"github.com/tdxtools/tdxmodule/version"
)

// SeamldrCompatible reports whether the current seamldr satisfies one of the
// module's per-line minimum versions. An entry matches when it names the
// seamldr's major.minor line and its update is not newer than the seamldr's.
// A malformed entry makes the module incompatible the moment it is reached;
// earlier entries keep their chance to match first. An unknown seamldr
// version is incompatible.
func SeamldrCompatible(m *catalog.Module, snap *platform.Snapshot) bool {
	if snap.SeamldrVersion == nil {
		return false
	}
	current := *snap.SeamldrVersion

	for _, s := range m.MinSeamldrVersions {
		required, err := version.Parse(s)
		if err != nil {
			return false
		}
		if required.SameMajorMinor(current) && required.Update <= current.Update {
			return true
		}
	}
	return false
}

// Compatible reports whether the module can run on the platform at all:
// the seamldr must satisfy a minimum version entry and the CPU family-model
// must be listed in the module's sigstruct.
func Compatible(m *catalog.Module, snap *platform.Snapshot) bool {
	if !SeamldrCompatible(m, snap) {
		return false
	}
	if snap.FamilyModel == nil {
		return false
	}
	return m.SupportsCPU(*snap.FamilyModel)
}

// TDPreservingCapable reports whether loading the module would preserve the
// state of running TDs. This requires a known current module version on the
// same major.minor line, a candidate no older than what is running, and a
// running version new enough for the candidate's declared minimum. Debug
// builds are never capable unless allowDebug is set.
func TDPreservingCapable(m *catalog.Module, snap *platform.Snapshot, allowDebug bool) bool {
	if m.Debug() && !allowDebug {
		return false
	}
	if snap.ModuleVersion == nil {
		return false
	}
	current := *snap.ModuleVersion

	return m.Version.SameMajorMinor(current) &&
		m.Version.Update >= current.Update &&
		m.MinTDPreservingVersion.Update <= current.Update
}
