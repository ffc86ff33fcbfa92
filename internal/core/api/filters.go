package api

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/solatis/itemfilter/internal/core/auth"
	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
	"go.uber.org/zap"
)

// GetFilter returns one filter.
func (s *FilterService) GetFilter(ctx context.Context, req *GetFilterRequest) (*GetFilterResponse, error) {
	f, err := s.catalog.Get(req.Name)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetFilterResponse{Filter: FromFilter(f)}, nil
}

// ListFilters returns every filter with an ETag over the set.
// A matching IfNoneMatch returns NotModified and no filters.
func (s *FilterService) ListFilters(ctx context.Context, req *ListFiltersRequest) (*ListFiltersResponse, error) {
	filters := s.catalog.List()
	etag := computeETag(filters)
	if req.IfNoneMatch != "" && req.IfNoneMatch == etag {
		return &ListFiltersResponse{ETag: etag, NotModified: true}, nil
	}

	out := make([]Filter, len(filters))
	for i, f := range filters {
		out[i] = FromFilter(f)
	}
	return &ListFiltersResponse{Filters: out, ETag: etag}, nil
}

// SaveFilter creates a filter or merges the request into the existing one.
// Merging keeps the identity of retained rule definitions. The result is
// validated against the catalog, persisted, then published to the catalog,
// all under the catalog's edit lock.
func (s *FilterService) SaveFilter(ctx context.Context, req *SaveFilterRequest) (*SaveFilterResponse, error) {
	source, err := toFilter(req.Filter)
	if err != nil {
		return nil, toStatus(err)
	}

	var saved *filter.Filter
	err = s.catalog.Edit(func() error {
		target, err := s.catalog.Get(source.Name())
		switch {
		case errors.Is(err, types.ErrFilterNotFound):
			target = source
			target.Version = 0
		case err != nil:
			return err
		default:
			if req.Filter.Version != 0 && req.Filter.Version != target.Version {
				return fmt.Errorf("%w: %s is at version %d, request has %d",
					types.ErrStaleFilter, target.Name(), target.Version, req.Filter.Version)
			}
			target.Merge(source)
		}

		if err := s.catalog.Validate(target); err != nil {
			return err
		}
		if err := s.store.Save(ctx, target); err != nil {
			return err
		}
		if err := s.catalog.Put(target); err != nil {
			return err
		}
		saved = target
		return nil
	})
	if err != nil {
		return nil, toStatus(err)
	}

	s.record(ctx, "save", saved.Name(), saved.Version)
	return &SaveFilterResponse{Filter: FromFilter(saved)}, nil
}

// DeleteFilter removes a filter that no other filter inherits from.
func (s *FilterService) DeleteFilter(ctx context.Context, req *DeleteFilterRequest) (*DeleteFilterResponse, error) {
	err := s.catalog.Edit(func() error {
		if _, err := s.catalog.Get(req.Name); err != nil {
			return err
		}
		for _, f := range s.catalog.List() {
			if f.Parent == req.Name {
				return fmt.Errorf("%w: %s is parent of %s", types.ErrFilterInUse, req.Name, f.Name())
			}
		}
		if err := s.store.Delete(ctx, req.Name); err != nil && !errors.Is(err, types.ErrFilterNotFound) {
			return err
		}
		return s.catalog.Delete(req.Name)
	})
	if err != nil {
		return nil, toStatus(err)
	}

	s.record(ctx, "delete", req.Name, 0)
	return &DeleteFilterResponse{}, nil
}

func (s *FilterService) record(ctx context.Context, action, name string, version int) {
	principal := auth.PrincipalFromContext(ctx)
	s.logger.Info("filter changed",
		zap.String("action", action),
		zap.String("filter", name),
		zap.Int("version", version),
		zap.String("principal", principal))
	if s.journal == nil {
		return
	}
	err := s.journal.Record(JournalEntry{
		Principal: principal,
		Action:    action,
		Filter:    name,
		Version:   version,
	})
	if err != nil {
		s.logger.Warn("journal write failed", zap.Error(err))
	}
}

// computeETag hashes the filter set so that any change to a name, version,
// parent or rule definition produces a different tag.
func computeETag(filters []*filter.Filter) string {
	lines := make([]string, 0, len(filters))
	for _, f := range filters {
		line := f.Name() + "@" + strconv.Itoa(f.Version) + "<" + f.Parent
		for _, rd := range f.Rules() {
			params := rd.Params()
			line += "|" + string(rd.ID) + "=" + rd.Name()
			for _, k := range sortedKeys(params) {
				line += ";" + k + "=" + params[k]
			}
		}
		lines = append(lines, line)
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
