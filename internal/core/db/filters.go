package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
)

// ErrUnavailable wraps storage failures so callers can tell them apart from
// domain errors.
var ErrUnavailable = errors.New("storage unavailable")

type filterRow struct {
	FilterID       string         `db:"filter_id"`
	Name           string         `db:"name"`
	Description    string         `db:"description"`
	ParentName     sql.NullString `db:"parent_name"`
	LegacyAuthtype sql.NullInt64  `db:"legacy_authtype"`
	Version        int            `db:"version"`
}

type ruleDefRow struct {
	RuleDefID string `db:"rule_def_id"`
	FilterID  string `db:"filter_id"`
	Name      string `db:"name"`
}

type ruleParamRow struct {
	RuleDefID string `db:"rule_def_id"`
	Name      string `db:"name"`
	Value     string `db:"value"`
}

// FilterStore persists filters with their rule definitions.
type FilterStore struct {
	db      *sqlx.DB
	queries *Queries
}

// NewFilterStore creates a store over db using the named queries.
func NewFilterStore(db *sqlx.DB, queries *Queries) *FilterStore {
	return &FilterStore{db: db, queries: queries}
}

// LoadAll returns every stored filter ordered by name. The three reads
// share one read-only transaction so the snapshot is consistent.
func (s *FilterStore) LoadAll(ctx context.Context) ([]*filter.Filter, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, unavailable("begin transaction", err)
	}
	defer tx.Rollback()
	q := s.queries.With(tx)

	var (
		filters []filterRow
		defs    []ruleDefRow
		params  []ruleParamRow
	)
	if err := q.Select(ctx, "list-filters", &filters); err != nil {
		return nil, unavailable("list filters", err)
	}
	if err := q.Select(ctx, "list-rule-defs", &defs); err != nil {
		return nil, unavailable("list rule definitions", err)
	}
	if err := q.Select(ctx, "list-rule-params", &params); err != nil {
		return nil, unavailable("list rule parameters", err)
	}
	return assemble(filters, defs, params)
}

// Get returns the named filter or ErrFilterNotFound.
func (s *FilterStore) Get(ctx context.Context, name string) (*filter.Filter, error) {
	return s.get(ctx, s.queries, name)
}

func (s *FilterStore) get(ctx context.Context, q *Queries, name string) (*filter.Filter, error) {
	var row filterRow
	err := q.Get(ctx, "get-filter-by-name", &row, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrFilterNotFound, name)
	}
	if err != nil {
		return nil, unavailable("get filter", err)
	}

	var (
		defs   []ruleDefRow
		params []ruleParamRow
	)
	if err := q.Select(ctx, "list-rule-defs-by-filter", &defs, row.FilterID); err != nil {
		return nil, unavailable("list rule definitions", err)
	}
	if err := q.Select(ctx, "list-rule-params-by-filter", &params, row.FilterID); err != nil {
		return nil, unavailable("list rule parameters", err)
	}
	filters, err := assemble([]filterRow{row}, defs, params)
	if err != nil {
		return nil, err
	}
	return filters[0], nil
}

// Save inserts f when its Version is 0, otherwise updates it if the stored
// version still equals f.Version (ErrStaleFilter when not). The rule set is
// rewritten as a whole, keeping rule definition IDs. On success f.Version
// holds the new stored version.
func (s *FilterStore) Save(ctx context.Context, f *filter.Filter) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()
	q := s.queries.With(tx)

	now := time.Now().UTC()
	parent := sql.NullString{String: f.Parent, Valid: f.Parent != ""}
	var authtype sql.NullInt64
	if f.LegacyAuthtype != nil {
		authtype = sql.NullInt64{Int64: int64(*f.LegacyAuthtype), Valid: true}
	}

	version := f.Version
	if version == 0 {
		var existing filterRow
		err := q.Get(ctx, "get-filter-by-name", &existing, f.Name())
		if err == nil {
			return fmt.Errorf("%w: %s", types.ErrFilterExists, f.Name())
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return unavailable("check filter", err)
		}
		if _, err := q.Exec(ctx, "insert-filter",
			string(f.ID), f.Name(), f.Description, parent, authtype, now, now); err != nil {
			return unavailable("insert filter", err)
		}
		version = 1
	} else {
		res, err := q.Exec(ctx, "update-filter",
			f.Description, parent, authtype, now, string(f.ID), f.Version)
		if err != nil {
			return unavailable("update filter", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return unavailable("update filter", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s at version %d", types.ErrStaleFilter, f.Name(), f.Version)
		}
		version++
	}

	if err := replaceRules(ctx, q, f); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	f.Version = version
	return nil
}

func replaceRules(ctx context.Context, q *Queries, f *filter.Filter) error {
	if _, err := q.Exec(ctx, "delete-rule-params-by-filter", string(f.ID)); err != nil {
		return unavailable("delete rule parameters", err)
	}
	if _, err := q.Exec(ctx, "delete-rule-defs-by-filter", string(f.ID)); err != nil {
		return unavailable("delete rule definitions", err)
	}
	for pos, rd := range f.Rules() {
		if _, err := q.Exec(ctx, "insert-rule-def", string(rd.ID), string(f.ID), rd.Name(), pos); err != nil {
			return unavailable("insert rule definition", err)
		}
		for k, v := range rd.Params() {
			if _, err := q.Exec(ctx, "insert-rule-param", string(rd.ID), k, v); err != nil {
				return unavailable("insert rule parameter", err)
			}
		}
	}
	return nil
}

// Delete removes the named filter. A filter still named as another
// filter's parent is rejected with ErrFilterInUse.
func (s *FilterStore) Delete(ctx context.Context, name string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()
	q := s.queries.With(tx)

	var row filterRow
	err = q.Get(ctx, "get-filter-by-name", &row, name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", types.ErrFilterNotFound, name)
	}
	if err != nil {
		return unavailable("get filter", err)
	}

	var children int
	if err := q.Get(ctx, "count-children", &children, name); err != nil {
		return unavailable("count children", err)
	}
	if children > 0 {
		return fmt.Errorf("%w: %s is the parent of %d filter(s)", types.ErrFilterInUse, name, children)
	}

	for _, stmt := range []string{"delete-rule-params-by-filter", "delete-rule-defs-by-filter", "delete-filter"} {
		if _, err := q.Exec(ctx, stmt, row.FilterID); err != nil {
			return unavailable(stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// assemble builds filters from rows. defs and params may cover filters
// missing from filters; those rows are ignored.
func assemble(filters []filterRow, defs []ruleDefRow, params []ruleParamRow) ([]*filter.Filter, error) {
	byRule := make(map[string]types.Params)
	for _, p := range params {
		if byRule[p.RuleDefID] == nil {
			byRule[p.RuleDefID] = types.Params{}
		}
		byRule[p.RuleDefID][p.Name] = p.Value
	}

	out := make([]*filter.Filter, 0, len(filters))
	byID := make(map[string]*filter.Filter, len(filters))
	for _, row := range filters {
		f, err := filter.NewFilter(row.Name, row.Description)
		if err != nil {
			return nil, fmt.Errorf("stored filter %s: %w", row.FilterID, err)
		}
		if f.ID, err = types.ParseFilterID(row.FilterID); err != nil {
			return nil, fmt.Errorf("stored filter %s: %w", row.Name, err)
		}
		f.Version = row.Version
		if row.ParentName.Valid {
			f.Parent = row.ParentName.String
		}
		if row.LegacyAuthtype.Valid {
			v := int(row.LegacyAuthtype.Int64)
			f.LegacyAuthtype = &v
		}
		byID[row.FilterID] = f
		out = append(out, f)
	}

	for _, d := range defs {
		f, ok := byID[d.FilterID]
		if !ok {
			continue
		}
		id, err := types.ParseRuleDefID(d.RuleDefID)
		if err != nil {
			return nil, fmt.Errorf("stored rule of %s: %w", f.Name(), err)
		}
		rd, err := filter.RestoreRuleDef(id, d.Name, byRule[d.RuleDefID])
		if err != nil {
			return nil, fmt.Errorf("stored rule %s: %w", d.RuleDefID, err)
		}
		if err := f.AddRule(rd); err != nil {
			return nil, fmt.Errorf("stored rule %s: %w", d.RuleDefID, err)
		}
	}
	return out, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
