package api

import (
	"sort"

	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
)

// Item is the wire form of a FilterItem.
type Item struct {
	ItemID     string            `json:"item_id"`
	FolderID   string            `json:"folder_id,omitempty"`
	SiteID     string            `json:"site_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Rule is the wire form of a rule definition. ID and Owner are set on
// responses only.
type Rule struct {
	ID     string            `json:"id,omitempty"`
	Name   string            `json:"name"`
	Owner  string            `json:"owner,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Filter is the wire form of a filter. ID is set on responses only.
type Filter struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Parent         string `json:"parent,omitempty"`
	LegacyAuthtype *int   `json:"legacy_authtype,omitempty"`
	Version        int    `json:"version,omitempty"`
	Rules          []Rule `json:"rules,omitempty"`
}

type ApplyFilterRequest struct {
	Filter string            `json:"filter"`
	Items  []Item            `json:"items"`
	Params map[string]string `json:"params,omitempty"`
}

type ApplyFilterResponse struct {
	Items []Item `json:"items"`
}

type ExplainFilterRequest struct {
	Filter string `json:"filter"`
}

// ExplainFilterResponse lists the compiled chain as owner/name@priority in
// execution order.
type ExplainFilterResponse struct {
	Filter string   `json:"filter"`
	Rules  []string `json:"rules"`
}

type GetFilterRequest struct {
	Name string `json:"name"`
}

type GetFilterResponse struct {
	Filter Filter `json:"filter"`
}

type ListFiltersRequest struct {
	IfNoneMatch string `json:"if_none_match,omitempty"`
}

// ListFiltersResponse carries no filters when NotModified is set.
type ListFiltersResponse struct {
	Filters     []Filter `json:"filters,omitempty"`
	ETag        string   `json:"etag"`
	NotModified bool     `json:"not_modified,omitempty"`
}

// SaveFilterRequest creates or updates a filter. For updates a non-zero
// Filter.Version must equal the stored version.
type SaveFilterRequest struct {
	Filter Filter `json:"filter"`
}

type SaveFilterResponse struct {
	Filter Filter `json:"filter"`
}

type DeleteFilterRequest struct {
	Name string `json:"name"`
}

type DeleteFilterResponse struct{}

// ToItems validates wire items and converts them to filter items.
func ToItems(in []Item, resolver types.IdentifierResolver) ([]*types.FilterItem, error) {
	out := make([]*types.FilterItem, 0, len(in))
	for _, it := range in {
		fi, err := types.NewFilterItem(
			types.GUID(it.ItemID), types.GUID(it.FolderID), types.GUID(it.SiteID),
			types.Attributes(it.Attributes), resolver,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	return out, nil
}

// FromItems converts filter items to their wire form.
func FromItems(in []*types.FilterItem) []Item {
	out := make([]Item, len(in))
	for i, it := range in {
		out[i] = Item{
			ItemID:     string(it.ItemID),
			FolderID:   string(it.FolderID),
			SiteID:     string(it.SiteID),
			Attributes: map[string]string(it.Attributes),
		}
	}
	return out
}

// FromFilter converts a filter to its wire form.
func FromFilter(f *filter.Filter) Filter {
	out := Filter{
		ID:          string(f.ID),
		Name:        f.Name(),
		Description: f.Description,
		Parent:      f.Parent,
		Version:     f.Version,
	}
	if f.LegacyAuthtype != nil {
		v := *f.LegacyAuthtype
		out.LegacyAuthtype = &v
	}
	for _, rd := range f.Rules() {
		out.Rules = append(out.Rules, Rule{
			ID:     string(rd.ID),
			Name:   rd.Name(),
			Owner:  rd.Owner(),
			Params: map[string]string(rd.Params()),
		})
	}
	return out
}

// toFilter builds a domain filter from the wire form. Filter and rule IDs
// on the wire are ignored: identity of existing rules is kept by name
// during the merge, and new filters and rules always get fresh IDs.
func toFilter(in Filter) (*filter.Filter, error) {
	f, err := filter.NewFilter(in.Name, in.Description)
	if err != nil {
		return nil, err
	}
	f.Parent = in.Parent
	if in.LegacyAuthtype != nil {
		v := *in.LegacyAuthtype
		f.LegacyAuthtype = &v
	}
	f.Version = in.Version
	for _, r := range in.Rules {
		rd, err := filter.NewRuleDef(r.Name, types.Params(r.Params))
		if err != nil {
			return nil, err
		}
		if err := f.AddRule(rd); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
