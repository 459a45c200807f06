package core

// Merge marks remote packages that are installed locally.
//
// For every remote package the first local entry with exactly the same name
// (case-sensitive) supplies the Installed version. Remote packages without a
// match keep Installed == nil. Local entries that match nothing are ignored;
// the inventory is a lookup table and never adds rows to the result.
//
// Merge returns a new slice and leaves remote untouched.
func Merge(remote []Package, local []LocalPackage) []Package {
	index := make(map[string]string, len(local))
	for _, lp := range local {
		if _, seen := index[lp.Name]; !seen {
			index[lp.Name] = lp.Version
		}
	}

	merged := make([]Package, len(remote))
	for i, p := range remote {
		if version, ok := index[p.Name]; ok {
			p = p.WithInstalled(version)
		}
		merged[i] = p
	}
	return merged
}
