package core

import (
	"context"

	"github.com/ajitpratap0/nebula-sheets/pkg/config"
)

// OptionsType selects one of the option scopes a host exposes.
type OptionsType int

const (
	// OptionsServer holds options shared by every table of a server.
	OptionsServer OptionsType = iota
	// OptionsTable holds options of one foreign table.
	OptionsTable
	// OptionsUser holds per-user mapping options, usually credentials.
	OptionsUser
)

func (o OptionsType) String() string {
	switch o {
	case OptionsServer:
		return "server"
	case OptionsTable:
		return "table"
	case OptionsUser:
		return "user"
	default:
		return "unknown"
	}
}

// Column is one projected column of the target table.
type Column interface {
	// Name returns the column name as declared by the host.
	Name() string
	// Num returns the 1-based ordinal of the column.
	Num() int
	// TypeOID returns the declared type of the column.
	TypeOID() TypeOID
}

// Row receives the cells of one produced row, in column order.
type Row interface {
	Push(cell Cell)
	Cells() []Cell
}

// Host is the embedding environment driving a connector. It owns option
// scopes, the projected columns and the informational side channel.
type Host interface {
	// Options returns a copy of one option scope.
	Options(scope OptionsType) config.Options
	// Require returns an option looked up across scopes, or a
	// config/missing_option error.
	Require(key string) (string, error)
	// Columns returns the projected columns in ordinal order.
	Columns() []Column
	// ReportInfo emits an operator-visible message that is not part of the
	// row data.
	ReportInfo(msg string)
}

// Routines is the lifecycle a host drives for one connector instance.
//
// A scan runs Init once, then BeginScan, IterScan until it reports no row,
// and EndScan. The modify routines bracket write operations the same way.
type Routines interface {
	Init(ctx context.Context, host Host) error

	BeginScan(ctx context.Context, host Host) error
	// IterScan fills row and returns true, or returns false once the scan is
	// exhausted.
	IterScan(ctx context.Context, host Host, row Row) (bool, error)
	ReScan(ctx context.Context, host Host) error
	EndScan(ctx context.Context, host Host) error

	BeginModify(ctx context.Context, host Host) error
	Insert(ctx context.Context, host Host, row Row) error
	Update(ctx context.Context, host Host, rowID Cell, row Row) error
	Delete(ctx context.Context, host Host, rowID Cell) error
	EndModify(ctx context.Context, host Host) error
}

// ColumnSpec describes a column discovered in a source, with the type a
// table should declare to read it.
type ColumnSpec struct {
	Num       int     `json:"num"`
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Type      TypeOID `json:"type"`
	Scannable bool    `json:"scannable"`
}

// Describer is implemented by connectors that can inspect a source's
// columns without running a scan.
type Describer interface {
	Describe(ctx context.Context, host Host) ([]ColumnSpec, error)
}
