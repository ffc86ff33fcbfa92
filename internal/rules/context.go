// internal/rules/context.go
package rules

import (
	"context"
	"fmt"

	"github.com/solatis/itemfilter/internal/types"
)

/*
 * Placement rules: site, folder, dedupe, limit.
 *
 * These operate on the identifiers carried by each FilterItem and need no
 * external lookups. Site and folder comparisons use the numeric uuid part of
 * the GUID so "0-9-301" and "301" name the same site.
 */

// Built-in priorities. Higher runs earlier.
const (
	PriorityPublishable = 100
	PrioritySite        = 90
	PriorityFolder      = 90
	PriorityDedupe      = 80
	PriorityAttribute   = 60
	PriorityExpression  = 50
	PriorityScript      = 40
	PriorityLimit       = -100
)

type siteConfig struct {
	Site        string `param:"sys_siteid"`
	AllowNoSite bool   `param:"sys_allowNoSite"`
}

// SiteRule keeps items published to one site.
type SiteRule struct{}

func (SiteRule) Name() string  { return "sys_filterBySite" }
func (SiteRule) Priority() int { return PrioritySite }

func (r SiteRule) Filter(_ context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	var cfg siteConfig
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	site, err := types.ParseGUID(cfg.Site)
	if err != nil {
		return nil, fmt.Errorf("%s: sys_siteid: %w", r.Name(), err)
	}

	out := make([]*types.FilterItem, 0, len(items))
	for _, it := range items {
		switch {
		case it.SiteID.IsZero():
			if cfg.AllowNoSite {
				out = append(out, it)
			}
		case it.SiteID.UUID() == site.UUID():
			out = append(out, it)
		}
	}
	return out, nil
}

type folderConfig struct {
	Folders []string `param:"sys_folderid"`
}

// FolderRule keeps items located in one of the listed folders.
type FolderRule struct{}

func (FolderRule) Name() string  { return "sys_filterByFolder" }
func (FolderRule) Priority() int { return PriorityFolder }

func (r FolderRule) Filter(_ context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	var cfg folderConfig
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	folders := trimAll(cfg.Folders)
	if len(folders) == 0 {
		return nil, fmt.Errorf("%w: %s: sys_folderid required", types.ErrInvalidArgument, r.Name())
	}
	allowed := make(map[int64]bool, len(folders))
	for _, f := range folders {
		id, err := types.ParseGUID(f)
		if err != nil {
			return nil, fmt.Errorf("%s: sys_folderid: %w", r.Name(), err)
		}
		allowed[id.UUID()] = true
	}

	out := make([]*types.FilterItem, 0, len(items))
	for _, it := range items {
		if !it.FolderID.IsZero() && allowed[it.FolderID.UUID()] {
			out = append(out, it)
		}
	}
	return out, nil
}

// DedupeRule drops items whose key repeats an earlier item's key.
type DedupeRule struct{}

func (DedupeRule) Name() string  { return "sys_dedupe" }
func (DedupeRule) Priority() int { return PriorityDedupe }

func (DedupeRule) Filter(_ context.Context, items []*types.FilterItem, _ types.Params) ([]*types.FilterItem, error) {
	seen := make(map[string]bool, len(items))
	out := make([]*types.FilterItem, 0, len(items))
	for _, it := range items {
		key, err := it.Key()
		if err != nil {
			return nil, err
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out, nil
}

type limitConfig struct {
	Max int `param:"max"`
}

// LimitRule keeps the first max items.
type LimitRule struct{}

func (LimitRule) Name() string  { return "sys_limit" }
func (LimitRule) Priority() int { return PriorityLimit }

func (r LimitRule) Filter(_ context.Context, items []*types.FilterItem, params types.Params) ([]*types.FilterItem, error) {
	cfg := limitConfig{Max: -1}
	if err := decodeParams(params, &cfg); err != nil {
		return nil, err
	}
	if cfg.Max < 0 {
		return nil, fmt.Errorf("%w: %s: max must be >= 0", types.ErrInvalidArgument, r.Name())
	}
	if len(items) <= cfg.Max {
		return items, nil
	}
	return items[:cfg.Max], nil
}
