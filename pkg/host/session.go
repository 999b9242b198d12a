// Package host provides an in-process host that drives a connector through
// its scan and modify lifecycles.
//
// A Session owns exactly one connector value together with its option
// scopes and projected columns. Dropping the session drops the connector
// state; nothing is kept in package globals.
package host

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sheets/pkg/config"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/core"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/logger"
	"github.com/ajitpratap0/nebula-sheets/pkg/metrics"
)

// requireOrder is the scope search order of Session.Require.
var requireOrder = []core.OptionsType{core.OptionsTable, core.OptionsServer, core.OptionsUser}

// Session is a core.Host bound to one connector instance. Lifecycle calls
// are serialized. While a scan runs, ReScan restarts it and every other
// lifecycle call fails, so a row callback can call back into the session.
type Session struct {
	mu sync.Mutex
	// callMu guards connector calls made while a scan holds mu.
	callMu   sync.Mutex
	scanning atomic.Bool

	routines    core.Routines
	options     map[core.OptionsType]config.Options
	columns     []core.Column
	infos       []string
	onInfo      func(string)
	logger      *zap.Logger
	table       string
	initialized bool
	closed      bool
}

var _ core.Host = (*Session)(nil)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithOptions sets one option scope.
func WithOptions(scope core.OptionsType, opts config.Options) SessionOption {
	return func(s *Session) { s.options[scope] = opts.Clone() }
}

// WithColumns sets the projected columns.
func WithColumns(cols ...core.Column) SessionOption {
	return func(s *Session) { s.columns = append([]core.Column(nil), cols...) }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithInfoHandler receives every ReportInfo message.
func WithInfoHandler(fn func(string)) SessionOption {
	return func(s *Session) { s.onInfo = fn }
}

// WithTable names the table, for logs.
func WithTable(name string) SessionOption {
	return func(s *Session) { s.table = name }
}

// NewSession creates a session that owns routines.
func NewSession(routines core.Routines, opts ...SessionOption) *Session {
	s := &Session{
		routines: routines,
		options:  make(map[core.OptionsType]config.Options),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "host_session"))
	return s
}

// FromConfig builds a session from a loaded table configuration.
func FromConfig(routines core.Routines, cfg *config.SheetsConfig, opts ...SessionOption) (*Session, error) {
	cols, err := ColumnsFromConfig(cfg.Columns)
	if err != nil {
		return nil, err
	}
	base := []SessionOption{
		WithOptions(core.OptionsServer, cfg.Server),
		WithOptions(core.OptionsTable, cfg.Table),
		WithOptions(core.OptionsUser, cfg.Credentials),
		WithColumns(cols...),
		WithTable(cfg.Name),
	}
	return NewSession(routines, append(base, opts...)...), nil
}

// Options returns a copy of one option scope.
func (s *Session) Options(scope core.OptionsType) config.Options {
	return s.options[scope].Clone()
}

// Require looks key up in the table, server and user scopes, in that order.
func (s *Session) Require(key string) (string, error) {
	for _, scope := range requireOrder {
		if v, ok := s.options[scope].Get(key); ok {
			return v, nil
		}
	}
	return config.Options(nil).Require(key)
}

// Columns returns the projected columns.
func (s *Session) Columns() []core.Column {
	return s.columns
}

// ReportInfo records an operator-visible message.
func (s *Session) ReportInfo(msg string) {
	s.infos = append(s.infos, msg)
	s.logger.Info(msg)
	if s.onInfo != nil {
		s.onInfo(msg)
	}
}

// Infos returns the messages reported so far.
func (s *Session) Infos() []string {
	return append([]string(nil), s.infos...)
}

// Scan runs one full scan, calling fn for every produced row. The row is
// only valid during the call. EndScan runs even when the scan fails.
func (s *Session) Scan(ctx context.Context, fn func(core.Row) error) (n int, err error) {
	if err := s.checkNotScanning(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureInit(ctx); err != nil {
		return 0, err
	}
	s.scanning.Store(true)
	defer s.scanning.Store(false)

	ctx = logger.WithScanID(ctx, uuid.NewString())
	if s.table != "" {
		ctx = logger.WithTable(ctx, s.table)
	}
	log := logger.Enrich(ctx, s.logger)
	timer := metrics.NewTimer("scan")

	defer func() {
		if endErr := s.locked(func() error { return s.routines.EndScan(ctx, s) }); endErr != nil && err == nil {
			err = endErr
		}
		metrics.ScansTotal.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			log.Warn("scan failed", zap.Int("rows", n), zap.Error(err))
			return
		}
		log.Info("scan finished", zap.Int("rows", n), zap.Duration("duration", timer.Stop()))
	}()

	if err := s.locked(func() error { return s.routines.BeginScan(ctx, s) }); err != nil {
		return 0, err
	}

	row := core.NewSliceRow(len(s.columns))
	for {
		if err := ctx.Err(); err != nil {
			return n, errors.Wrap(err, errors.CodeInternal, "scan cancelled")
		}
		row.Reset()
		var ok bool
		err := s.locked(func() (ierr error) {
			ok, ierr = s.routines.IterScan(ctx, s, row)
			return ierr
		})
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
		if fn != nil {
			if err := fn(row); err != nil {
				return n, err
			}
		}
	}
}

// Collect runs a scan and returns every row as plain values.
func (s *Session) Collect(ctx context.Context) ([][]interface{}, error) {
	var out [][]interface{}
	_, err := s.Scan(ctx, func(row core.Row) error {
		vals := make([]interface{}, len(row.Cells()))
		for i, c := range row.Cells() {
			vals[i] = core.CellValue(c)
		}
		out = append(out, vals)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReScan asks the connector to restart the current scan. It may be called
// from the row callback of a running scan.
func (s *Session) ReScan(ctx context.Context) error {
	if s.scanning.Load() {
		return s.locked(func() error { return s.routines.ReScan(ctx, s) })
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureInit(ctx); err != nil {
		return err
	}
	return s.routines.ReScan(ctx, s)
}

// Modify runs the write lifecycle, inserting rows between BeginModify and
// EndModify.
func (s *Session) Modify(ctx context.Context, rows ...core.Row) error {
	if err := s.checkNotScanning(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureInit(ctx); err != nil {
		return err
	}
	if err := s.routines.BeginModify(ctx, s); err != nil {
		return err
	}
	for _, row := range rows {
		if err := s.routines.Insert(ctx, s, row); err != nil {
			return err
		}
	}
	return s.routines.EndModify(ctx, s)
}

// Describe reports the source columns when the connector supports it.
func (s *Session) Describe(ctx context.Context) ([]core.ColumnSpec, error) {
	if err := s.checkNotScanning(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}
	d, ok := s.routines.(core.Describer)
	if !ok {
		return nil, errors.New(errors.CodeUnsupportedOperation, "connector cannot describe its source")
	}
	return d.Describe(ctx, s)
}

// Routines returns the connector owned by the session.
func (s *Session) Routines() core.Routines {
	return s.routines
}

// Close drops the connector. Further calls fail.
func (s *Session) Close() error {
	if err := s.checkNotScanning(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.routines = nil
	s.closed = true
	return nil
}

// locked runs one connector call under callMu.
func (s *Session) locked(fn func() error) error {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	return fn()
}

func (s *Session) checkNotScanning() error {
	if s.scanning.Load() {
		return errors.New(errors.CodeInternal, "a scan is in progress")
	}
	return nil
}

func (s *Session) ensureInit(ctx context.Context) error {
	if s.closed || s.routines == nil {
		return errors.New(errors.CodeInternal, "session is closed")
	}
	if s.initialized {
		return nil
	}
	if err := s.routines.Init(ctx, s); err != nil {
		return err
	}
	s.initialized = true
	return nil
}
