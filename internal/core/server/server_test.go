package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/solatis/itemfilter/internal/core/api"
	"github.com/solatis/itemfilter/internal/core/auth"
	"github.com/solatis/itemfilter/internal/core/config"
	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/rules"
	"github.com/solatis/itemfilter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopStore struct{}

func (nopStore) Save(_ context.Context, f *filter.Filter) error {
	f.Version++
	return nil
}

func (nopStore) Delete(context.Context, string) error { return nil }

type staticLoader struct {
	filters []*filter.Filter
	err     error
}

func (l staticLoader) LoadAll(context.Context) ([]*filter.Filter, error) {
	return l.filters, l.err
}

func newCatalog(t *testing.T) *filter.Catalog {
	t.Helper()
	reg, err := rules.NewDefaultRegistry(nil, rules.Options{})
	require.NoError(t, err)
	return filter.NewCatalog(reg)
}

func mustFilter(t *testing.T, name string, ruleNames ...string) *filter.Filter {
	t.Helper()
	f, err := filter.NewFilter(name, "")
	require.NoError(t, err)
	for _, r := range ruleNames {
		rd, err := filter.NewRuleDef(r, types.Params{"max": "1"})
		require.NoError(t, err)
		require.NoError(t, f.AddRule(rd))
	}
	return f
}

func newHTTP(t *testing.T, catalog *filter.Catalog) http.Handler {
	t.Helper()
	cfg := config.Default().Server
	svc, err := api.NewFilterService(catalog, nopStore{}, nil, &cfg, nil)
	require.NoError(t, err)
	srv, err := NewHTTPServer(&cfg, svc, nil)
	require.NoError(t, err)
	return srv.Handler()
}

func do(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTP_Healthz(t *testing.T) {
	h := newHTTP(t, newCatalog(t))
	rec := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHTTP_ApplyFilter(t *testing.T) {
	catalog := newCatalog(t)
	require.NoError(t, catalog.Put(mustFilter(t, "news", "sys_limit")))
	h := newHTTP(t, catalog)

	rec := do(h, http.MethodPost, "/v1/filters/news/apply",
		`{"items":[{"item_id":"0-1-1"},{"item_id":"0-1-2"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"items":[{"item_id":"0-1-1"}]}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/v1/filters/nope/apply", `{"items":[{"item_id":"1"}]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NotFound"`)

	rec = do(h, http.MethodPost, "/v1/filters/news/apply", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_ApplyFilterBodyLimit(t *testing.T) {
	catalog := newCatalog(t)
	require.NoError(t, catalog.Put(mustFilter(t, "news", "sys_limit")))
	cfg := config.Default().Server
	cfg.MaxBatchSize = 1
	svc, err := api.NewFilterService(catalog, nopStore{}, nil, &cfg, nil)
	require.NoError(t, err)
	srv, err := NewHTTPServer(&cfg, svc, nil)
	require.NoError(t, err)

	huge := `{"items":[{"item_id":"1","attributes":{"k":"` + strings.Repeat("x", 4<<20) + `"}}]}`
	rec := do(srv.Handler(), http.MethodPost, "/v1/filters/news/apply", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHTTP_ListFiltersETag(t *testing.T) {
	catalog := newCatalog(t)
	require.NoError(t, catalog.Put(mustFilter(t, "news", "sys_limit")))
	h := newHTTP(t, catalog)

	rec := do(h, http.MethodGet, "/v1/filters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = do(h, http.MethodGet, "/v1/filters", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHTTP_GetAndExplain(t *testing.T) {
	catalog := newCatalog(t)
	require.NoError(t, catalog.Put(mustFilter(t, "news", "sys_limit")))
	h := newHTTP(t, catalog)

	rec := do(h, http.MethodGet, "/v1/filters/news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"news"`)

	rec = do(h, http.MethodGet, "/v1/filters/news/explain", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"filter":"news","rules":["news/sys_limit@-100"]}`, rec.Body.String())
}

func TestReloader_Reload(t *testing.T) {
	catalog := newCatalog(t)
	require.NoError(t, catalog.Put(mustFilter(t, "old")))

	r, err := NewReloader("@every 1h", staticLoader{filters: []*filter.Filter{mustFilter(t, "new")}}, catalog, 0, nil)
	require.NoError(t, err)
	require.NoError(t, r.Reload(context.Background()))

	_, err = catalog.Get("old")
	assert.ErrorIs(t, err, types.ErrFilterNotFound)
	_, err = catalog.Get("new")
	assert.NoError(t, err)
}

func TestReloader_FailureKeepsCatalog(t *testing.T) {
	catalog := newCatalog(t)
	require.NoError(t, catalog.Put(mustFilter(t, "old")))

	r, err := NewReloader("@every 1h", staticLoader{err: errors.New("db down")}, catalog, 0, nil)
	require.NoError(t, err)
	assert.Error(t, r.Reload(context.Background()))

	_, err = catalog.Get("old")
	assert.NoError(t, err)
}

// blockingLoader reads its snapshot immediately, then waits for release
// before returning it.
type blockingLoader struct {
	snapshot func() []*filter.Filter
	entered  chan struct{}
	release  chan struct{}
}

func (l blockingLoader) LoadAll(context.Context) ([]*filter.Filter, error) {
	filters := l.snapshot()
	close(l.entered)
	<-l.release
	return filters, nil
}

func TestReloader_DoesNotRollBackConcurrentEdit(t *testing.T) {
	catalog := newCatalog(t)
	v1 := mustFilter(t, "news")
	v1.Version = 1
	require.NoError(t, catalog.Put(v1))

	var mu sync.Mutex
	stored := v1
	loader := blockingLoader{
		snapshot: func() []*filter.Filter {
			mu.Lock()
			defer mu.Unlock()
			return []*filter.Filter{stored.Clone()}
		},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	r, err := NewReloader("@every 1h", loader, catalog, 0, nil)
	require.NoError(t, err)

	reloaded := make(chan error, 1)
	go func() { reloaded <- r.Reload(context.Background()) }()
	<-loader.entered

	v2 := mustFilter(t, "news")
	v2.Version = 2
	v2.Description = "second"
	edited := make(chan error, 1)
	go func() {
		edited <- catalog.Edit(func() error {
			mu.Lock()
			stored = v2
			mu.Unlock()
			return catalog.Put(v2)
		})
	}()

	select {
	case <-edited:
		t.Fatal("edit completed while a reload was in progress")
	case <-time.After(50 * time.Millisecond):
	}
	close(loader.release)
	require.NoError(t, <-reloaded)
	require.NoError(t, <-edited)

	got, err := catalog.Get("news")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "second", got.Description)
}

func TestNewReloader_BadSchedule(t *testing.T) {
	_, err := NewReloader("every now and then", staticLoader{}, newCatalog(t), 0, nil)
	assert.Error(t, err)
}

func TestNewGRPCServer_Validation(t *testing.T) {
	cfg := config.Default().Server
	svc, err := api.NewFilterService(newCatalog(t), nopStore{}, nil, &cfg, nil)
	require.NoError(t, err)
	authn := auth.NewAuthenticator(nil, nil, api.AdminMethods...)

	_, err = NewGRPCServer(nil, svc, authn)
	assert.Error(t, err)
	_, err = NewGRPCServer(&cfg, nil, authn)
	assert.Error(t, err)
	_, err = NewGRPCServer(&cfg, svc, nil)
	assert.Error(t, err)

	srv, err := NewGRPCServer(&cfg, svc, authn)
	require.NoError(t, err)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
