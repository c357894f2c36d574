package catalog

import "sort"

// SortDescending orders modules newest first by full version (major, minor,
// update compared as integers).
func SortDescending(modules []*Module) {
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Version.Compare(modules[j].Version) > 0
	})
}

// Find returns the module whose version exactly matches the given string.
func Find(modules []*Module, versionStr string) (*Module, bool) {
	for _, m := range modules {
		if m.Version.String() == versionStr {
			return m, true
		}
	}
	return nil, false
}
