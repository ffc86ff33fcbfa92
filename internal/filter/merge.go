// internal/filter/merge.go
package filter

/*
 * Administrative merge of filter definitions.
 *
 * MergeRules reconciles this filter's rule definitions with a replacement
 * set while keeping the *RuleDef objects (and their IDs) of rules that
 * survive by name. Persistence keys rows on RuleDef.ID, so an edit that only
 * changes parameters updates rows in place instead of delete+insert.
 *
 * Reconciliation:
 *   1. Names absent from source are removed.
 *   2. Retained definitions take the source's parameter set exactly
 *      (update shared keys, drop vanished keys, add new keys).
 *   3. Names new to this filter are adopted as clones of the source's
 *      definitions, keeping the source's ID.
 *
 * Ordering: retained rules keep their position, adopted rules append in
 * source order. Merging the same source twice is a no-op the second time.
 */

// MergeRules reconciles this filter's rules with source's rules.
func (f *Filter) MergeRules(source *Filter) {
	if source == nil {
		return
	}

	wanted := make(map[string]*RuleDef, len(source.rules))
	for _, rd := range source.rules {
		wanted[rd.name] = rd
	}

	retained := make(map[string]*RuleDef, len(f.rules))
	kept := f.rules[:0]
	for _, rd := range f.rules {
		if _, ok := wanted[rd.name]; !ok {
			continue
		}
		retained[rd.name] = rd
		kept = append(kept, rd)
	}
	// Clear the tail so dropped definitions are not pinned by the backing array.
	for i := len(kept); i < len(f.rules); i++ {
		f.rules[i] = nil
	}
	f.rules = kept

	for _, src := range source.rules {
		rd, ok := retained[src.name]
		if !ok {
			adopted := src.clone()
			adopted.owner = f.name
			f.rules = append(f.rules, adopted)
			continue
		}
		mergeParams(rd, src)
	}
}

// mergeParams makes dst's parameter set equal to src's without replacing the map.
func mergeParams(dst, src *RuleDef) {
	for k := range dst.params {
		if v, ok := src.params[k]; ok {
			dst.params[k] = v
		} else {
			delete(dst.params, k)
		}
	}
	for k, v := range src.params {
		if _, ok := dst.params[k]; !ok {
			dst.params[k] = v
		}
	}
}

// Merge copies description, parent and legacy authtype from source, then
// merges rules. Name, ID and Version are left alone.
func (f *Filter) Merge(source *Filter) {
	if source == nil {
		return
	}
	f.Description = source.Description
	f.Parent = source.Parent
	f.LegacyAuthtype = nil
	if source.LegacyAuthtype != nil {
		v := *source.LegacyAuthtype
		f.LegacyAuthtype = &v
	}
	f.MergeRules(source)
}
