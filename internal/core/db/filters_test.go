package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFilter(t *testing.T, name, parent string, rules map[string]types.Params) *filter.Filter {
	t.Helper()
	f, err := filter.NewFilter(name, name+" filter")
	require.NoError(t, err)
	f.Parent = parent
	for rule, params := range rules {
		rd, err := filter.NewRuleDef(rule, params)
		require.NoError(t, err)
		require.NoError(t, f.AddRule(rd))
	}
	return f
}

func TestFilterStore_SaveAndLoad(t *testing.T) {
	db, q := openTestDB(t)
	store := NewFilterStore(db, q)
	ctx := context.Background()

	base := newFilter(t, "base", "", map[string]types.Params{
		"sys_dedupe": nil,
	})
	authtype := 4
	news := newFilter(t, "news", "base", map[string]types.Params{
		"sys_filterBySite": {"sys_siteid": "301", "sys_allowNoSite": "true"},
	})
	news.LegacyAuthtype = &authtype

	require.NoError(t, store.Save(ctx, base))
	require.NoError(t, store.Save(ctx, news))
	assert.Equal(t, 1, news.Version)

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "base", all[0].Name())
	assert.Equal(t, "news", all[1].Name())

	got := all[1]
	assert.Equal(t, news.ID, got.ID)
	assert.Equal(t, "base", got.Parent)
	require.NotNil(t, got.LegacyAuthtype)
	assert.Equal(t, 4, *got.LegacyAuthtype)
	assert.Equal(t, 1, got.Version)

	site := got.Rule("sys_filterBySite")
	require.NotNil(t, site)
	assert.Equal(t, news.Rule("sys_filterBySite").ID, site.ID)
	assert.Equal(t, types.Params{"sys_siteid": "301", "sys_allowNoSite": "true"}, site.Params())
	assert.Equal(t, "news", site.Owner())

	one, err := store.Get(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, got.Rules()[0].ID, one.Rules()[0].ID)
}

func TestFilterStore_RuleOrderPreserved(t *testing.T) {
	db, q := openTestDB(t)
	store := NewFilterStore(db, q)
	ctx := context.Background()

	f, err := filter.NewFilter("ordered", "")
	require.NoError(t, err)
	for _, name := range []string{"c", "a", "b"} {
		rd, err := filter.NewRuleDef(name, nil)
		require.NoError(t, err)
		require.NoError(t, f.AddRule(rd))
	}
	require.NoError(t, store.Save(ctx, f))

	got, err := store.Get(ctx, "ordered")
	require.NoError(t, err)
	var names []string
	for _, rd := range got.Rules() {
		names = append(names, rd.Name())
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestFilterStore_UpdateAndStale(t *testing.T) {
	db, q := openTestDB(t)
	store := NewFilterStore(db, q)
	ctx := context.Background()

	f := newFilter(t, "f", "", map[string]types.Params{"sys_limit": {"max": "5"}})
	require.NoError(t, store.Save(ctx, f))

	// Two editors load version 1.
	first, err := store.Get(ctx, "f")
	require.NoError(t, err)
	second, err := store.Get(ctx, "f")
	require.NoError(t, err)

	require.NoError(t, first.Rule("sys_limit").SetParam("max", "10"))
	first.RemoveRule("sys_limit")
	rd, err := filter.NewRuleDef("sys_dedupe", nil)
	require.NoError(t, err)
	require.NoError(t, first.AddRule(rd))
	require.NoError(t, store.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Description = "late edit"
	err = store.Save(ctx, second)
	assert.ErrorIs(t, err, types.ErrStaleFilter)

	got, err := store.Get(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Nil(t, got.Rule("sys_limit"))
	assert.NotNil(t, got.Rule("sys_dedupe"))
}

func TestFilterStore_InsertDuplicate(t *testing.T) {
	db, q := openTestDB(t)
	store := NewFilterStore(db, q)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newFilter(t, "dup", "", nil)))
	err := store.Save(ctx, newFilter(t, "dup", "", nil))
	assert.ErrorIs(t, err, types.ErrFilterExists)
}

func TestFilterStore_Delete(t *testing.T) {
	db, q := openTestDB(t)
	store := NewFilterStore(db, q)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newFilter(t, "parent", "", map[string]types.Params{"sys_dedupe": {"x": "y"}})))
	require.NoError(t, store.Save(ctx, newFilter(t, "child", "parent", nil)))

	assert.ErrorIs(t, store.Delete(ctx, "parent"), types.ErrFilterInUse)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), types.ErrFilterNotFound)

	require.NoError(t, store.Delete(ctx, "child"))
	require.NoError(t, store.Delete(ctx, "parent"))

	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = store.Get(ctx, "parent")
	assert.ErrorIs(t, err, types.ErrFilterNotFound)
}

func newMockStore(t *testing.T) (*FilterStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlite3")
	q, err := LoadQueries(db)
	require.NoError(t, err)
	return NewFilterStore(db, q), mock
}

func TestFilterStore_LoadAllUnavailable(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT filter_id, name").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterStore_LoadAllBeginFails(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := store.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterStore_SaveStaleWithMock(t *testing.T) {
	store, mock := newMockStore(t)
	f := newFilter(t, "f", "", nil)
	f.Version = 3

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE item_filters").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Save(context.Background(), f)
	assert.ErrorIs(t, err, types.ErrStaleFilter)
	assert.Equal(t, 3, f.Version, "version unchanged on failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterStore_SaveRollsBackOnRuleFailure(t *testing.T) {
	store, mock := newMockStore(t)
	f := newFilter(t, "f", "", map[string]types.Params{"sys_dedupe": nil})
	f.Version = 1

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE item_filters").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM item_filter_rule_params").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM item_filter_rules").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO item_filter_rules").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.Save(context.Background(), f)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, f.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
