package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-sheets/pkg/auth"
	"github.com/ajitpratap0/nebula-sheets/pkg/clients"
	"github.com/ajitpratap0/nebula-sheets/pkg/config"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/core"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/gviz"
	"github.com/ajitpratap0/nebula-sheets/pkg/host"
	"github.com/ajitpratap0/nebula-sheets/pkg/sheetsapi"
)

const peopleBody = gviz.Prefix + `{"version":"0.6","status":"ok","table":{` +
	`"cols":[{"id":"A","label":"id","type":"number"},{"id":"B","label":"name","type":"string"},{"id":"C","label":"joined","type":"date"}],` +
	`"rows":[` +
	`{"c":[{"v":1.0,"f":"1"},{"v":"Erlich Bachman"},null,null,null,null,{"v":null}]},` +
	`{"c":[{"v":2.0,"f":"2"},{"v":"Richard Hendricks"}]},` +
	`{"c":[{"v":3.9},null]}` +
	`]}}`

type fakeAcquirer struct {
	keys [][]byte
	err  error
}

func (f *fakeAcquirer) Acquire(_ context.Context, key []byte) (*auth.AccessToken, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return &auth.AccessToken{Value: "tok-123", Type: "Bearer", Expiry: time.Now().Add(time.Hour)}, nil
}

type fakeFetcher struct {
	body    string
	bodies  []string
	err     error
	urls    []string
	bearers []string
}

func (f *fakeFetcher) FetchText(_ context.Context, url, bearer string) (string, error) {
	f.urls = append(f.urls, url)
	f.bearers = append(f.bearers, bearer)
	if f.err != nil {
		return "", f.err
	}
	if len(f.bodies) > 0 {
		b := f.bodies[0]
		f.bodies = f.bodies[1:]
		return b, nil
	}
	return f.body, nil
}

type fakeCatalog struct {
	sheets []sheetsapi.SheetInfo
	calls  int
}

func (f *fakeCatalog) ListSheets(context.Context, string) ([]sheetsapi.SheetInfo, error) {
	f.calls++
	return f.sheets, nil
}

func (f *fakeCatalog) ResolveSheetID(ctx context.Context, spreadsheetID, title string) (string, error) {
	list, _ := f.ListSheets(ctx, spreadsheetID)
	for _, s := range list {
		if s.Title == title {
			return "42", nil
		}
	}
	return "", errors.New(errors.CodeInvalidOption, "not found")
}

type fixture struct {
	conn     *Connector
	acquirer *fakeAcquirer
	fetcher  *fakeFetcher
	catalog  *fakeCatalog
}

func newFixture(t *testing.T, body string) *fixture {
	t.Helper()
	f := &fixture{
		acquirer: &fakeAcquirer{},
		fetcher:  &fakeFetcher{body: body},
		catalog:  &fakeCatalog{sheets: []sheetsapi.SheetInfo{{ID: 42, Title: "Orders"}}},
	}
	f.conn = New(zaptest.NewLogger(t),
		WithAcquirer(f.acquirer),
		WithFetcher(f.fetcher),
		WithCatalog(func(context.Context, *auth.AccessToken) (SheetCatalog, error) { return f.catalog, nil }),
	)
	return f
}

func (f *fixture) session(t *testing.T, table config.Options, cols ...core.Column) *host.Session {
	t.Helper()
	return host.NewSession(f.conn,
		host.WithLogger(zaptest.NewLogger(t)),
		host.WithOptions(core.OptionsServer, config.Options{config.OptionBaseURL: "https://sheets.test/d"}),
		host.WithOptions(core.OptionsUser, config.Options{config.OptionSAKey: `{"type":"service_account"}`}),
		host.WithOptions(core.OptionsTable, table),
		host.WithColumns(cols...),
	)
}

func peopleColumns() []core.Column {
	return []core.Column{
		host.Column("id", 1, core.TypeI64),
		host.Column("name", 2, core.TypeString),
	}
}

func TestBuildURL(t *testing.T) {
	base := "https://docs.google.com/spreadsheets/d"

	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc123/gviz/tq?tqx=out:json",
		BuildURL(base, "abc123", ""))
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc123/gviz/tq?tqx=out:json&gid=0",
		BuildURL(base, "abc123", "0"))
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc123/gviz/tq?tqx=out:json&gid=7",
		BuildURL(base+"/", "abc123", "7"))
}

func TestInitBaseURL(t *testing.T) {
	f := newFixture(t, peopleBody)

	s := host.NewSession(f.conn)
	require.Error(t, s.ReScan(context.Background()))
	assert.Equal(t, DefaultBaseURL, f.conn.BaseURL())

	f2 := newFixture(t, peopleBody)
	s2 := f2.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, peopleColumns()...)
	_, err := s2.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://sheets.test/d", f2.conn.BaseURL())
	assert.Equal(t, []string{"https://sheets.test/d/abc123/gviz/tq?tqx=out:json"}, f2.fetcher.urls)
}

func TestScanRoundTrip(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123", config.OptionSheetID: "0"}, peopleColumns()...)

	rows, err := s.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][]interface{}{
		{int64(1), "Erlich Bachman"},
		{int64(2), "Richard Hendricks"},
		{int64(3), nil},
	}, rows)
	assert.Equal(t, []string{"We got response array length: 3"}, s.Infos())
	assert.Equal(t, []string{"https://sheets.test/d/abc123/gviz/tq?tqx=out:json&gid=0"}, f.fetcher.urls)
	assert.Equal(t, []string{"tok-123"}, f.fetcher.bearers)
	assert.Equal(t, StateIdle, f.conn.Cursor().State())
	assert.Zero(t, f.conn.Cursor().Len())
}

func TestScanProjectsByOrdinal(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"},
		host.Column("name", 2, core.TypeString),
		host.Column("far_away", 12, core.TypeString),
		host.Column("null_v", 7, core.TypeI64),
	)

	rows, err := s.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []interface{}{"Erlich Bachman", nil, nil}, rows[0])
	for _, row := range rows {
		assert.Len(t, row, 3)
	}
}

func TestIntegerTruncation(t *testing.T) {
	body := gviz.Prefix + `{"table":{"rows":[{"c":[{"v":2.9}]},{"c":[{"v":-2.9}]},{"c":[{"v":1e30}]},{"c":[{"v":0.0}]}]}}`
	f := newFixture(t, body)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, host.Column("n", 1, core.TypeI64))

	rows, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(2)}, {int64(-2)}, {int64(9223372036854775807)}, {int64(0)}}, rows)
}

func TestWrongTypedValueAbortsScan(t *testing.T) {
	tests := []struct {
		name string
		body string
		col  core.Column
	}{
		{"string into integer", `{"table":{"rows":[{"c":[{"v":1}]},{"c":[{"v":"two"}]},{"c":[{"v":3}]}]}}`, host.Column("n", 1, core.TypeI64)},
		{"number into string", `{"table":{"rows":[{"c":[{"v":"a"}]},{"c":[{"v":2}]}]}}`, host.Column("s", 1, core.TypeString)},
		{"bool into integer", `{"table":{"rows":[{"c":[{"v":1}]},{"c":[{"v":true}]}]}}`, host.Column("n", 1, core.TypeI64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, gviz.Prefix+tt.body)
			s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, tt.col)

			var produced int
			n, err := s.Scan(context.Background(), func(core.Row) error {
				produced++
				return nil
			})

			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeUnsupportedConversion), err.Error())
			assert.Equal(t, 1, n)
			assert.Equal(t, 1, produced)

			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.col.Name(), e.Details[errors.DetailColumn])
		})
	}
}

func TestUnsupportedColumnTypeFailsOnFirstRow(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"},
		host.Column("id", 1, core.TypeI64),
		host.Column("joined", 3, core.TypeDate),
	)

	n, err := s.Scan(context.Background(), nil)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedColumnType))
	assert.Contains(t, err.Error(), "column joined data type is not supported")

	// BeginScan itself succeeds; the column is only rejected when a row is read.
	empty := newFixture(t, gviz.Prefix+`{"table":{"rows":[]}}`)
	s = empty.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, host.Column("joined", 1, core.TypeDate))
	n, err = s.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBeginScanParseFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errors.Code
	}{
		{"no prefix", `{"table":{"rows":[]}}`, errors.CodeUnexpectedFormat},
		{"bad json", gviz.Prefix + `{"table":`, errors.CodeInvalidJSON},
		{"no rows", gviz.Prefix + `{"status":"error"}`, errors.CodeMissingRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.body)
			s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, peopleColumns()...)

			n, err := s.Scan(context.Background(), nil)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), err.Error())
			assert.Zero(t, n)
			assert.Empty(t, s.Infos())
			assert.Equal(t, StateIdle, f.conn.Cursor().State())
		})
	}
}

func TestReScanAlwaysFails(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, peopleColumns()...)
	ctx := context.Background()

	assertReScan := func() {
		err := f.conn.ReScan(ctx, s)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeUnsupportedOperation))
		assert.Contains(t, err.Error(), "re_scan on foreign table is not supported")
	}

	assertReScan()

	require.NoError(t, f.conn.Init(ctx, s))
	require.NoError(t, f.conn.BeginScan(ctx, s))
	assertReScan()

	row := core.NewSliceRow(2)
	ok, err := f.conn.IterScan(ctx, s, row)
	require.NoError(t, err)
	require.True(t, ok)
	assertReScan()

	for ok {
		row.Reset()
		ok, err = f.conn.IterScan(ctx, s, row)
		require.NoError(t, err)
	}
	assert.Equal(t, StateExhausted, f.conn.Cursor().State())
	assertReScan()

	require.NoError(t, f.conn.EndScan(ctx, s))
	assertReScan()
}

func TestSessionReScanMidScanFails(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, peopleColumns()...)
	ctx := context.Background()

	n, err := s.Scan(ctx, func(core.Row) error { return s.ReScan(ctx) })
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedOperation))
	assert.Equal(t, 1, n)
	assert.Equal(t, StateIdle, f.conn.Cursor().State())
}

func TestRescanAfterEndScanRefetches(t *testing.T) {
	f := newFixture(t, "")
	f.fetcher.bodies = []string{
		peopleBody,
		gviz.Prefix + `{"table":{"rows":[{"c":[{"v":9},{"v":"Gilfoyle"}]}]}}`,
	}
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, peopleColumns()...)

	first, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{int64(9), "Gilfoyle"}}, second)
	assert.Len(t, f.fetcher.urls, 2)
	assert.Len(t, f.acquirer.keys, 2)
}

func TestIterScanWithoutBeginScan(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{}, peopleColumns()...)

	ok, err := f.conn.IterScan(context.Background(), s, core.NewSliceRow(2))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestModifyRejected(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, peopleColumns()...)
	ctx := context.Background()

	err := s.Modify(ctx, core.NewSliceRow(0))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeUnsupportedOperation))
	assert.Contains(t, err.Error(), "modify on foreign table is not supported")

	assert.NoError(t, f.conn.Insert(ctx, s, core.NewSliceRow(0)))
	assert.NoError(t, f.conn.Update(ctx, s, core.I64Cell(1), core.NewSliceRow(0)))
	assert.NoError(t, f.conn.Delete(ctx, s, core.I64Cell(1)))
	assert.NoError(t, f.conn.EndModify(ctx, s))
	assert.Empty(t, f.fetcher.urls)
}

func TestBeginScanRequiresOptions(t *testing.T) {
	t.Run("spread_sheet_id", func(t *testing.T) {
		f := newFixture(t, peopleBody)
		s := f.session(t, config.Options{}, peopleColumns()...)

		_, err := s.Scan(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeMissingOption))
		assert.Empty(t, f.acquirer.keys)
	})

	t.Run("sa_key", func(t *testing.T) {
		f := newFixture(t, peopleBody)
		s := host.NewSession(f.conn,
			host.WithOptions(core.OptionsTable, config.Options{config.OptionSpreadsheetID: "abc123"}),
			host.WithColumns(peopleColumns()...),
		)

		_, err := s.Scan(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeMissingOption))
		assert.Contains(t, err.Error(), `"sa_key"`)
	})
}

func TestServiceAccountKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))

	f := newFixture(t, peopleBody)
	s := host.NewSession(f.conn,
		host.WithOptions(core.OptionsTable, config.Options{
			config.OptionSpreadsheetID: "abc123",
			config.OptionSAKeyFile:     path,
		}),
		host.WithColumns(peopleColumns()...),
	)

	_, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, f.acquirer.keys, 1)
	assert.Equal(t, `{"from":"file"}`, string(f.acquirer.keys[0]))

	bad := newFixture(t, peopleBody)
	s = host.NewSession(bad.conn,
		host.WithOptions(core.OptionsTable, config.Options{
			config.OptionSpreadsheetID: "abc123",
			config.OptionSAKeyFile:     filepath.Join(t.TempDir(), "missing.json"),
		}),
	)
	_, err = s.Scan(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidOption))
}

func TestAuthFailureStopsBeforeFetch(t *testing.T) {
	f := newFixture(t, peopleBody)
	f.acquirer.err = errors.New(errors.CodeEmptyToken, "no token")
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, peopleColumns()...)

	_, err := s.Scan(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeEmptyToken))
	assert.Empty(t, f.fetcher.urls)
}

func TestFetchFailurePropagates(t *testing.T) {
	f := newFixture(t, peopleBody)
	f.fetcher.err = errors.New(errors.CodeHTTPStatus, "unexpected status 403").WithDetail(errors.DetailStatusCode, 403)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"}, peopleColumns()...)

	_, err := s.Scan(context.Background(), nil)
	status, ok := errors.HTTPStatus(err)
	require.True(t, ok)
	assert.Equal(t, 403, status)
}

func TestSheetNameResolution(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123", config.OptionSheetName: "Orders"}, peopleColumns()...)

	_, err := s.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://sheets.test/d/abc123/gviz/tq?tqx=out:json&gid=42"}, f.fetcher.urls)
	assert.Equal(t, 1, f.catalog.calls)

	// sheet_id wins without calling the Sheets API
	f = newFixture(t, peopleBody)
	s = f.session(t, config.Options{
		config.OptionSpreadsheetID: "abc123",
		config.OptionSheetID:       "5",
		config.OptionSheetName:     "Orders",
	}, peopleColumns()...)
	_, err = s.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://sheets.test/d/abc123/gviz/tq?tqx=out:json&gid=5"}, f.fetcher.urls)
	assert.Zero(t, f.catalog.calls)

	f = newFixture(t, peopleBody)
	s = f.session(t, config.Options{config.OptionSpreadsheetID: "abc123", config.OptionSheetName: "Nope"}, peopleColumns()...)
	_, err = s.Scan(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidOption))
	assert.Empty(t, f.fetcher.urls)
}

func TestDescribe(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"})

	specs, err := s.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.ColumnSpec{
		{Num: 1, ID: "A", Label: "id", Type: core.TypeI64, Scannable: true},
		{Num: 2, ID: "B", Label: "name", Type: core.TypeString, Scannable: true},
		{Num: 3, ID: "C", Label: "joined", Type: core.TypeDate, Scannable: false},
	}, specs)
	assert.Equal(t, StateIdle, f.conn.Cursor().State())
}

func TestSheetsListing(t *testing.T) {
	f := newFixture(t, peopleBody)
	s := f.session(t, config.Options{config.OptionSpreadsheetID: "abc123"})

	list, err := f.conn.Sheets(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []sheetsapi.SheetInfo{{ID: 42, Title: "Orders"}}, list)
}

func TestScanOverHTTP(t *testing.T) {
	var gotAuth, gotUA, gotMarker, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		gotMarker = r.Header.Get("X-Datasource-Auth")
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/abc123/gviz/tq", r.URL.Path)
		_, _ = w.Write([]byte(peopleBody))
	}))
	defer srv.Close()

	cfg := clients.DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	acquirer := &fakeAcquirer{}
	conn := New(zaptest.NewLogger(t),
		WithAcquirer(acquirer),
		WithFetcher(clients.NewHTTPClient(cfg, zaptest.NewLogger(t))),
	)
	s := host.NewSession(conn,
		host.WithOptions(core.OptionsServer, config.Options{config.OptionBaseURL: srv.URL}),
		host.WithOptions(core.OptionsTable, config.Options{
			config.OptionSpreadsheetID: "abc123",
			config.OptionSheetID:       "0",
			config.OptionSAKey:         "{}",
		}),
		host.WithColumns(peopleColumns()...),
	)

	rows, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "Sheets FDW", gotUA)
	assert.Equal(t, "true", gotMarker)
	assert.Equal(t, "tqx=out:json&gid=0", gotQuery)
}

func TestRegisteredInGlobalRegistry(t *testing.T) {
	require.True(t, registry.Has(Name))

	routines, err := registry.Create(Name, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &Connector{}, routines)

	info, err := registry.Info(Name)
	require.NoError(t, err)
	assert.Contains(t, info.Options, config.OptionSpreadsheetID)
}

const ordersSpreadsheet = `{"spreadsheetId":"abc123","sheets":[` +
	`{"properties":{"sheetId":0,"title":"People","index":0}},` +
	`{"properties":{"sheetId":1763184373,"title":"Orders","index":1}}]}`

// redirectTransport sends every request to target and counts them.
type redirectTransport struct {
	target *url.URL
	calls  int32
	auth   atomic.Value
}

func (rt *redirectTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	atomic.AddInt32(&rt.calls, 1)
	rt.auth.Store(r.Header.Get("Authorization"))
	r = r.Clone(r.Context())
	r.URL.Scheme = rt.target.Scheme
	r.URL.Host = rt.target.Host
	r.Host = ""
	return http.DefaultTransport.RoundTrip(r)
}

func sheetsAPIServer(t *testing.T) *redirectTransport {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/spreadsheets/abc123", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ordersSpreadsheet))
	}))
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return &redirectTransport{target: target}
}

func TestNewCatalogAuthorizesOverBaseClient(t *testing.T) {
	rt := sheetsAPIServer(t)
	factory := NewCatalog(zaptest.NewLogger(t), &http.Client{Transport: rt},
		option.WithEndpoint("http://sheets.test/"))

	catalog, err := factory(context.Background(), &auth.AccessToken{Value: "tok-123", Type: "Bearer", Expiry: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	id, err := catalog.ResolveSheetID(context.Background(), "abc123", "Orders")
	require.NoError(t, err)
	assert.Equal(t, "1763184373", id)
	assert.EqualValues(t, 1, atomic.LoadInt32(&rt.calls))
	assert.Equal(t, "Bearer tok-123", rt.auth.Load())
}

// sharingFetcher is a fakeFetcher that also exposes an *http.Client.
type sharingFetcher struct {
	*fakeFetcher
	client *http.Client
}

func (f *sharingFetcher) Client() *http.Client { return f.client }

func TestDefaultCatalogUsesFetcherTransport(t *testing.T) {
	rt := sheetsAPIServer(t)
	fetcher := &sharingFetcher{fakeFetcher: &fakeFetcher{body: peopleBody}, client: &http.Client{Transport: rt}}
	conn := New(zaptest.NewLogger(t), WithAcquirer(&fakeAcquirer{}), WithFetcher(fetcher))
	s := host.NewSession(conn,
		host.WithOptions(core.OptionsServer, config.Options{config.OptionBaseURL: "https://sheets.test/d"}),
		host.WithOptions(core.OptionsTable, config.Options{
			config.OptionSpreadsheetID: "abc123",
			config.OptionSheetName:     "Orders",
			config.OptionSAKey:         "{}",
		}),
		host.WithColumns(peopleColumns()...),
	)

	_, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&rt.calls))
	assert.Equal(t, "Bearer tok-123", rt.auth.Load())
	require.Len(t, fetcher.urls, 1)
	assert.Equal(t, "https://sheets.test/d/abc123/gviz/tq?tqx=out:json&gid=1763184373", fetcher.urls[0])
}

func TestEndScanLogsFetchStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(peopleBody))
	}))
	defer srv.Close()

	obsCore, logs := observer.New(zap.DebugLevel)
	log := zap.New(obsCore)
	cfg := clients.DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	conn := New(log, WithAcquirer(&fakeAcquirer{}), WithFetcher(clients.NewHTTPClient(cfg, log)))
	s := host.NewSession(conn,
		host.WithOptions(core.OptionsServer, config.Options{config.OptionBaseURL: srv.URL}),
		host.WithOptions(core.OptionsTable, config.Options{
			config.OptionSpreadsheetID: "abc123",
			config.OptionSAKey:         "{}",
		}),
		host.WithColumns(peopleColumns()...),
	)

	_, err := s.Collect(context.Background())
	require.NoError(t, err)

	ended := logs.FilterMessage("scan ended").All()
	require.Len(t, ended, 1)
	fields := ended[0].ContextMap()
	assert.Equal(t, int64(1), fields["fetch_requests"])
	assert.Equal(t, int64(0), fields["fetch_retries"])
	assert.Equal(t, int64(3), fields["rows_produced"])
}

func TestConfigureAfterRegistryCreate(t *testing.T) {
	routines, err := registry.Create(Name, zaptest.NewLogger(t))
	require.NoError(t, err)
	conn, ok := routines.(*Connector)
	require.True(t, ok)

	fetcher := &fakeFetcher{body: peopleBody}
	conn.Configure(WithAcquirer(&fakeAcquirer{}), WithFetcher(fetcher))
	s := host.NewSession(conn,
		host.WithOptions(core.OptionsTable, config.Options{
			config.OptionSpreadsheetID: "abc123",
			config.OptionSAKey:         "{}",
		}),
		host.WithColumns(peopleColumns()...),
	)

	rows, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, []string{DefaultBaseURL + "/abc123/gviz/tq?tqx=out:json"}, fetcher.urls)
}
