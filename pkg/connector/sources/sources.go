// Package sources links every source connector into the registry. Import
// it for its side effects.
package sources

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sheets/pkg/connector/registry"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/sources/sheets"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
)

// NewSheetsSource creates the registered sheets connector and applies opts
// on top of its default token acquirer, fetcher and catalog.
func NewSheetsSource(logger *zap.Logger, opts ...sheets.Option) (*sheets.Connector, error) {
	routines, err := registry.Create(sheets.Name, logger)
	if err != nil {
		return nil, err
	}
	conn, ok := routines.(*sheets.Connector)
	if !ok {
		return nil, errors.Newf(errors.CodeInternal, "registry built %T for %s", routines, sheets.Name)
	}
	conn.Configure(opts...)
	return conn, nil
}
