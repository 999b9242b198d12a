package sheets

import (
	"math"

	"github.com/ajitpratap0/nebula-sheets/pkg/connector/core"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/gviz"
)

// State is the position of a Cursor in the scan lifecycle.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Cursor walks the rows of one fetch and maps them onto target columns
// by ordinal position.
type Cursor struct {
	rows  gviz.RowSet
	pos   int
	state State
}

// NewCursor returns an idle cursor.
func NewCursor() *Cursor {
	return &Cursor{}
}

// Reset starts a new scan over rows.
func (c *Cursor) Reset(rows gviz.RowSet) {
	c.rows = rows
	c.pos = 0
	c.state = StateScanning
}

// Clear drops the rows and returns to idle.
func (c *Cursor) Clear() {
	c.rows = nil
	c.pos = 0
	c.state = StateIdle
}

// State returns the current state.
func (c *Cursor) State() State { return c.state }

// Len returns the number of rows held.
func (c *Cursor) Len() int { return len(c.rows) }

// Pos returns the index of the next row.
func (c *Cursor) Pos() int { return c.pos }

// Next fills row with the next source row projected onto cols. It returns
// false once every row has been produced, or when no scan is active.
//
// Column i is read from source cell i-1. A missing or null source cell
// yields an absent target cell; a present value of the wrong shape aborts
// the scan.
func (c *Cursor) Next(cols []core.Column, row core.Row) (bool, error) {
	if c.state != StateScanning {
		return false, nil
	}
	if c.pos >= len(c.rows) {
		c.state = StateExhausted
		return false, nil
	}

	src := c.rows[c.pos]
	for _, col := range cols {
		cell, err := convert(col, src)
		if err != nil {
			return false, err
		}
		row.Push(cell)
	}

	c.pos++
	return true, nil
}

func convert(col core.Column, src gviz.Row) (core.Cell, error) {
	typ := col.TypeOID()
	if typ != core.TypeI64 && typ != core.TypeString {
		return nil, errors.Newf(errors.CodeUnsupportedColumnType,
			"column %s data type is not supported", col.Name()).
			WithDetail(errors.DetailColumn, col.Name()).
			WithDetail("type", typ.String())
	}

	v, err := src.Cell(col.Num() - 1)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidJSON, "cannot read column "+col.Name())
	}
	if v.IsMissing() {
		return nil, nil
	}

	switch typ {
	case core.TypeI64:
		if f, ok := v.Float(); ok {
			return core.I64Cell(truncate(f)), nil
		}
	case core.TypeString:
		if s, ok := v.Str(); ok {
			return core.StringCell(s), nil
		}
	}

	return nil, errors.Newf(errors.CodeUnsupportedConversion,
		"column %s: cannot convert %s value to %s", col.Name(), v.Kind(), typ).
		WithDetail(errors.DetailColumn, col.Name())
}

// truncate converts toward zero, saturating at the int64 bounds.
func truncate(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}
