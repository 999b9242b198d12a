// Package nebulasheets exposes Google Sheets tabs as read-only foreign tables.
//
// A host (see pkg/host) owns one sheets connector per table and drives it
// through the scan lifecycle: Init, BeginScan, IterScan until exhausted,
// then EndScan. BeginScan acquires a service-account token, fetches the
// tab through the gviz query endpoint and keeps the parsed rows; IterScan
// projects one row at a time onto the table's declared columns.
//
// # Quick Start
//
//	import (
//	    "context"
//
//	    "github.com/ajitpratap0/nebula-sheets/pkg/config"
//	    "github.com/ajitpratap0/nebula-sheets/pkg/connector/registry"
//	    "github.com/ajitpratap0/nebula-sheets/pkg/host"
//	    "github.com/ajitpratap0/nebula-sheets/pkg/logger"
//
//	    _ "github.com/ajitpratap0/nebula-sheets/pkg/connector/sources/sheets"
//	)
//
//	cfg := config.NewSheetsConfig("people")
//	cfg.Table[config.OptionSpreadsheetID] = "1abc..."
//	cfg.Table[config.OptionSheetID] = "0"
//	cfg.Credentials[config.OptionSAKeyFile] = "/secrets/key.json"
//	cfg.Columns = []config.ColumnConfig{
//	    {Name: "id", Type: "bigint"},
//	    {Name: "name", Type: "text"},
//	}
//
//	routines, _ := registry.Create("sheets", logger.Get())
//	session, _ := host.FromConfig(routines, cfg)
//	rows, err := session.Collect(context.Background())
//
// # Packages
//
//   - pkg/auth: service-account token acquisition
//   - pkg/clients: gviz fetch with retry, backoff and rate limiting
//   - pkg/gviz: response parsing and cell values
//   - pkg/sheetsapi: tab listing and title resolution
//   - pkg/connector: lifecycle interfaces, registry and the sheets connector
//   - pkg/host: in-process host sessions
//   - pkg/config, pkg/errors, pkg/logger, pkg/metrics, pkg/observability
//
// The sheetscan command (cmd/sheetscan) drives the same session from the
// command line.
package nebulasheets
