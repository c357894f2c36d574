package compat

import (
	"sort"

	"github.com/tdxtools/tdxmodule/catalog"
	"github.com/tdxtools/tdxmodule/platform"
)

// NewestCapable returns the TD-preserving-capable module with the highest
// update component, or nil if no module qualifies.
//
// Known limitation: the sort deliberately ignores major and minor. The
// TD-preserving check already pins candidates to the running module's
// major.minor line, but a catalog spanning several lines with no module
// loaded would compare updates across lines.
func NewestCapable(modules []*catalog.Module, snap *platform.Snapshot, allowDebug bool) *catalog.Module {
	var capable []*catalog.Module
	for _, m := range modules {
		if TDPreservingCapable(m, snap, allowDebug) {
			capable = append(capable, m)
		}
	}
	if len(capable) == 0 {
		return nil
	}

	sort.Slice(capable, func(i, j int) bool {
		return capable[i].Version.Update > capable[j].Version.Update
	})
	return capable[0]
}
