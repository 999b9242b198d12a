// Package sheets reads Google Sheets tabs through the gviz query endpoint.
//
// A scan acquires a service account token, fetches the tab as gviz JSON in
// one request and then hands its rows to the host one at a time. The write
// path is rejected.
package sheets

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-sheets/pkg/auth"
	"github.com/ajitpratap0/nebula-sheets/pkg/clients"
	"github.com/ajitpratap0/nebula-sheets/pkg/config"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/core"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/gviz"
	"github.com/ajitpratap0/nebula-sheets/pkg/logger"
	"github.com/ajitpratap0/nebula-sheets/pkg/metrics"
	"github.com/ajitpratap0/nebula-sheets/pkg/observability"
	"github.com/ajitpratap0/nebula-sheets/pkg/sheetsapi"
)

const (
	// Name is the registry name of the connector.
	Name = "sheets"
	// Version of the connector.
	Version = "0.1.0"
	// DefaultBaseURL is used when the server has no base_url option.
	DefaultBaseURL = "https://docs.google.com/spreadsheets/d"

	msgReScanUnsupported = "re_scan on foreign table is not supported"
	msgModifyUnsupported = "modify on foreign table is not supported"
)

// Fetcher retrieves a resource as text with a bearer token.
type Fetcher interface {
	FetchText(ctx context.Context, url, bearer string) (string, error)
}

// SheetCatalog lists and resolves the tabs of a spreadsheet.
type SheetCatalog interface {
	ListSheets(ctx context.Context, spreadsheetID string) ([]sheetsapi.SheetInfo, error)
	ResolveSheetID(ctx context.Context, spreadsheetID, title string) (string, error)
}

// CatalogFactory builds a SheetCatalog authorized with tok.
type CatalogFactory func(ctx context.Context, tok *auth.AccessToken) (SheetCatalog, error)

// NewCatalog returns a CatalogFactory whose Sheets API clients send the
// token over base. A nil base falls back to http.DefaultClient.
func NewCatalog(log *zap.Logger, base *http.Client, opts ...option.ClientOption) CatalogFactory {
	return func(ctx context.Context, tok *auth.AccessToken) (SheetCatalog, error) {
		octx := ctx
		if base != nil {
			octx = context.WithValue(ctx, oauth2.HTTPClient, base)
		}
		hc := oauth2.NewClient(octx, tok.TokenSource())
		return sheetsapi.NewClient(ctx, log, append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)...)
	}
}

// transportSharer is implemented by fetchers whose *http.Client the Sheets
// API client can reuse.
type transportSharer interface {
	Client() *http.Client
}

// statsReporter is implemented by fetchers that keep request counters.
type statsReporter interface {
	GetStats() clients.HTTPStats
}

// Option configures a Connector.
type Option func(*Connector)

// WithAcquirer replaces the service account token acquirer.
func WithAcquirer(a auth.Acquirer) Option {
	return func(c *Connector) { c.acquirer = a }
}

// WithFetcher replaces the HTTP fetch pipeline.
func WithFetcher(f Fetcher) Option {
	return func(c *Connector) { c.fetcher = f }
}

// WithCatalog replaces the Sheets API client factory.
func WithCatalog(f CatalogFactory) Option {
	return func(c *Connector) { c.catalog = f }
}

// Connector is the sheets implementation of core.Routines. A value holds
// the state of one session; it is not safe for concurrent scans.
type Connector struct {
	logger   *zap.Logger
	root     *zap.Logger
	tracer   *observability.ConnectorTracer
	acquirer auth.Acquirer
	fetcher  Fetcher
	catalog  CatalogFactory

	baseURL string
	cursor  *Cursor
	columns []gviz.Column
}

var (
	_ core.Routines  = (*Connector)(nil)
	_ core.Describer = (*Connector)(nil)
)

// New creates a connector using the production token acquirer, HTTP client
// and Sheets API client unless options replace them.
func New(log *zap.Logger, opts ...Option) *Connector {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Connector{
		logger:  log.With(zap.String("component", "sheets_connector")),
		root:    log,
		tracer:  observability.NewConnectorTracer(Name),
		baseURL: DefaultBaseURL,
		cursor:  NewCursor(),
	}
	c.Configure(opts...)

	if c.acquirer == nil {
		c.acquirer = auth.NewServiceAccountAcquirer(log)
	}
	if c.fetcher == nil {
		c.fetcher = clients.NewHTTPClient(clients.DefaultHTTPConfig(), log)
	}
	return c
}

// Configure applies opts to a connector that already exists, such as one
// created through the registry.
func (c *Connector) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// openCatalog uses the configured CatalogFactory, or builds Sheets API
// clients on the fetcher's transport when none is set.
func (c *Connector) openCatalog(ctx context.Context, tok *auth.AccessToken) (SheetCatalog, error) {
	if c.catalog != nil {
		return c.catalog(ctx, tok)
	}
	var base *http.Client
	if ts, ok := c.fetcher.(transportSharer); ok {
		base = ts.Client()
	}
	return NewCatalog(c.root, base)(ctx, tok)
}

// Init reads the server's base_url option.
func (c *Connector) Init(ctx context.Context, host core.Host) error {
	c.baseURL = strings.TrimRight(host.Options(core.OptionsServer).RequireOr(config.OptionBaseURL, DefaultBaseURL), "/")
	c.logger.Debug("connector initialized", zap.String("base_url", c.baseURL))
	return nil
}

// BaseURL returns the base URL in effect.
func (c *Connector) BaseURL() string { return c.baseURL }

// Cursor exposes the scan cursor, mainly for inspection in tests.
func (c *Connector) Cursor() *Cursor { return c.cursor }

// SourceColumns returns the gviz column metadata of the active scan.
func (c *Connector) SourceColumns() []gviz.Column { return c.columns }

// BeginScan fetches the whole tab and positions the cursor on its first
// row. Any failure leaves the cursor idle with no rows.
func (c *Connector) BeginScan(ctx context.Context, host core.Host) error {
	c.cursor.Clear()
	c.columns = nil

	return c.tracer.Trace(ctx, "begin_scan", func(ctx context.Context, span *observability.Span) error {
		log := logger.Enrich(ctx, c.logger)

		resp, target, err := c.load(ctx, host)
		if err != nil {
			log.Error("begin scan failed", zap.Error(err))
			return err
		}

		c.cursor.Reset(resp.Rows)
		c.columns = resp.Columns
		span.SetAttribute("sheets.rows", len(resp.Rows))

		host.ReportInfo(fmt.Sprintf("We got response array length: %d", len(resp.Rows)))
		log.Info("scan started",
			zap.String("spreadsheet_id", target.spreadsheetID),
			zap.String("sheet_id", target.sheetID),
			zap.Int("rows", len(resp.Rows)))
		return nil
	})
}

// IterScan produces the next row.
func (c *Connector) IterScan(ctx context.Context, host core.Host, row core.Row) (bool, error) {
	ok, err := c.cursor.Next(host.Columns(), row)
	if err != nil {
		logger.Enrich(ctx, c.logger).Error("row conversion failed",
			zap.Int("row", c.cursor.Pos()),
			zap.Error(err))
		return false, err
	}
	if ok {
		metrics.RowsProduced.Inc()
	}
	return ok, nil
}

// ReScan is not supported: a scan fetches once and cannot rewind.
func (c *Connector) ReScan(ctx context.Context, host core.Host) error {
	return errors.New(errors.CodeUnsupportedOperation, msgReScanUnsupported)
}

// EndScan releases the fetched rows.
func (c *Connector) EndScan(ctx context.Context, host core.Host) error {
	fields := []zap.Field{
		zap.Int("rows_produced", c.cursor.Pos()),
		zap.Int("rows_fetched", c.cursor.Len()),
	}
	if sr, ok := c.fetcher.(statsReporter); ok {
		st := sr.GetStats()
		fields = append(fields,
			zap.Int64("fetch_requests", st.TotalRequests),
			zap.Int64("fetch_retries", st.Retries),
			zap.Int64("fetch_failures", st.FailedFetches),
			zap.Duration("fetch_p95", st.P95Latency))
	}
	logger.Enrich(ctx, c.logger).Debug("scan ended", fields...)
	c.cursor.Clear()
	c.columns = nil
	return nil
}

// BeginModify rejects the write path.
func (c *Connector) BeginModify(ctx context.Context, host core.Host) error {
	return errors.New(errors.CodeUnsupportedOperation, msgModifyUnsupported)
}

// Insert is unreachable once BeginModify has failed.
func (c *Connector) Insert(ctx context.Context, host core.Host, row core.Row) error {
	return nil
}

// Update is unreachable once BeginModify has failed.
func (c *Connector) Update(ctx context.Context, host core.Host, rowID core.Cell, row core.Row) error {
	return nil
}

// Delete is unreachable once BeginModify has failed.
func (c *Connector) Delete(ctx context.Context, host core.Host, rowID core.Cell) error {
	return nil
}

// EndModify succeeds.
func (c *Connector) EndModify(ctx context.Context, host core.Host) error {
	return nil
}

// Describe fetches the tab once and reports its columns with the type a
// table should declare for each.
func (c *Connector) Describe(ctx context.Context, host core.Host) ([]core.ColumnSpec, error) {
	var specs []core.ColumnSpec
	err := c.tracer.Trace(ctx, "describe", func(ctx context.Context, span *observability.Span) error {
		resp, _, err := c.load(ctx, host)
		if err != nil {
			return err
		}
		specs = make([]core.ColumnSpec, len(resp.Columns))
		for i, col := range resp.Columns {
			typ, scannable := suggestType(col.Type)
			specs[i] = core.ColumnSpec{
				Num:       i + 1,
				ID:        col.ID,
				Label:     col.Label,
				Type:      typ,
				Scannable: scannable,
			}
		}
		span.SetAttribute("sheets.columns", len(specs))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return specs, nil
}

// Sheets lists the tabs of the table's spreadsheet.
func (c *Connector) Sheets(ctx context.Context, host core.Host) ([]sheetsapi.SheetInfo, error) {
	spreadsheetID, err := host.Options(core.OptionsTable).Require(config.OptionSpreadsheetID)
	if err != nil {
		return nil, err
	}
	tok, err := c.acquire(ctx, host)
	if err != nil {
		return nil, err
	}
	catalog, err := c.openCatalog(ctx, tok)
	if err != nil {
		return nil, err
	}
	return catalog.ListSheets(ctx, spreadsheetID)
}

type target struct {
	spreadsheetID string
	sheetID       string
	url           string
}

// load runs token acquisition, fetch and parse for the table's options.
func (c *Connector) load(ctx context.Context, host core.Host) (*gviz.Response, *target, error) {
	opts := host.Options(core.OptionsTable)
	spreadsheetID, err := opts.Require(config.OptionSpreadsheetID)
	if err != nil {
		return nil, nil, err
	}

	tok, err := c.acquire(ctx, host)
	if err != nil {
		return nil, nil, err
	}

	sheetID, err := c.sheetID(ctx, opts, spreadsheetID, tok)
	if err != nil {
		return nil, nil, err
	}

	t := &target{
		spreadsheetID: spreadsheetID,
		sheetID:       sheetID,
		url:           BuildURL(c.baseURL, spreadsheetID, sheetID),
	}

	var body string
	err = c.tracer.Trace(ctx, "fetch", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("http.url", t.url)
		var ferr error
		body, ferr = c.fetcher.FetchText(ctx, t.url, tok.Value)
		span.SetAttribute("http.response_size", len(body))
		return ferr
	})
	if err != nil {
		return nil, nil, err
	}

	var resp *gviz.Response
	err = c.tracer.Trace(ctx, "parse", func(ctx context.Context, span *observability.Span) error {
		var perr error
		resp, perr = gviz.ParseResponse(body)
		return perr
	})
	if err != nil {
		return nil, nil, err
	}
	return resp, t, nil
}

func (c *Connector) acquire(ctx context.Context, host core.Host) (*auth.AccessToken, error) {
	key, err := loadKey(host)
	if err != nil {
		return nil, err
	}

	var tok *auth.AccessToken
	err = c.tracer.Trace(ctx, "acquire_token", func(ctx context.Context, _ *observability.Span) error {
		var aerr error
		tok, aerr = c.acquirer.Acquire(ctx, key)
		return aerr
	})
	metrics.TokenAcquisitions.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// sheetID returns the sheet_id option, or resolves sheet_name through the
// Sheets API when only the name is set.
func (c *Connector) sheetID(ctx context.Context, opts config.Options, spreadsheetID string, tok *auth.AccessToken) (string, error) {
	if id, ok := opts.Get(config.OptionSheetID); ok {
		return id, nil
	}
	name, ok := opts.Get(config.OptionSheetName)
	if !ok || name == "" {
		return "", nil
	}

	catalog, err := c.openCatalog(ctx, tok)
	if err != nil {
		return "", err
	}
	id, err := catalog.ResolveSheetID(ctx, spreadsheetID, name)
	if err != nil {
		return "", err
	}
	c.logger.Debug("resolved sheet name", zap.String("sheet_name", name), zap.String("sheet_id", id))
	return id, nil
}

// loadKey returns the sa_key option, falling back to the file named by
// sa_key_file.
func loadKey(host core.Host) ([]byte, error) {
	key, err := host.Require(config.OptionSAKey)
	if err == nil {
		return []byte(key), nil
	}
	path, ferr := host.Require(config.OptionSAKeyFile)
	if ferr != nil {
		return nil, err
	}
	b, rerr := os.ReadFile(path)
	if rerr != nil {
		return nil, errors.Wrap(rerr, errors.CodeInvalidOption, "cannot read service account key file").
			WithDetail(errors.DetailOption, config.OptionSAKeyFile)
	}
	return b, nil
}

// BuildURL composes the gviz query URL for a spreadsheet and optional tab.
func BuildURL(base, spreadsheetID, sheetID string) string {
	u := strings.TrimRight(base, "/") + "/" + spreadsheetID + "/gviz/tq?tqx=out:json"
	if sheetID != "" {
		u += "&gid=" + url.QueryEscape(sheetID)
	}
	return u
}

func suggestType(gvizType string) (core.TypeOID, bool) {
	switch gvizType {
	case "number":
		return core.TypeI64, true
	case "string":
		return core.TypeString, true
	case "boolean":
		return core.TypeBool, false
	case "date":
		return core.TypeDate, false
	case "datetime":
		return core.TypeTimestamp, false
	default:
		return core.TypeString, false
	}
}
