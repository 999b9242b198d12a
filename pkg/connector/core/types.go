package core

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
)

// TypeOID is the declared type of a target column.
type TypeOID int

const (
	TypeBool TypeOID = iota + 1
	TypeI8
	TypeI16
	TypeF32
	TypeI32
	TypeF64
	TypeI64
	TypeNumeric
	TypeString
	TypeDate
	TypeTimestamp
	TypeTimestamptz
	TypeJSON
	TypeUUID
)

var typeNames = map[TypeOID]string{
	TypeBool:        "bool",
	TypeI8:          "i8",
	TypeI16:         "i16",
	TypeF32:         "f32",
	TypeI32:         "i32",
	TypeF64:         "f64",
	TypeI64:         "i64",
	TypeNumeric:     "numeric",
	TypeString:      "string",
	TypeDate:        "date",
	TypeTimestamp:   "timestamp",
	TypeTimestamptz: "timestamptz",
	TypeJSON:        "json",
	TypeUUID:        "uuid",
}

// aliases accepted by ParseTypeOID besides the canonical names.
var typeAliases = map[string]TypeOID{
	"boolean":   TypeBool,
	"smallint":  TypeI16,
	"int2":      TypeI16,
	"integer":   TypeI32,
	"int":       TypeI32,
	"int4":      TypeI32,
	"bigint":    TypeI64,
	"int8":      TypeI64,
	"real":      TypeF32,
	"float4":    TypeF32,
	"double":    TypeF64,
	"float8":    TypeF64,
	"decimal":   TypeNumeric,
	"text":      TypeString,
	"varchar":   TypeString,
	"jsonb":     TypeJSON,
	"timestamp": TypeTimestamp,
}

func (t TypeOID) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// MarshalText renders the canonical name.
func (t TypeOID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts anything ParseTypeOID accepts.
func (t *TypeOID) UnmarshalText(b []byte) error {
	parsed, err := ParseTypeOID(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTypeOID parses a type name case-insensitively, accepting the
// canonical names and common SQL aliases.
func ParseTypeOID(s string) (TypeOID, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for oid, name := range typeNames {
		if name == key {
			return oid, nil
		}
	}
	if oid, ok := typeAliases[key]; ok {
		return oid, nil
	}
	return 0, errors.Newf(errors.CodeInvalidOption, "unknown column type %q", s)
}

// Cell is a produced target value: I64Cell or StringCell. A nil Cell is an
// absent value.
type Cell interface {
	isCell()
	String() string
}

// I64Cell is a 64-bit integer value.
type I64Cell int64

// StringCell is a text value.
type StringCell string

func (I64Cell) isCell()    {}
func (StringCell) isCell() {}

func (c I64Cell) String() string    { return strconv.FormatInt(int64(c), 10) }
func (c StringCell) String() string { return string(c) }

// CellValue converts a cell to a plain Go value: int64, string or nil.
func CellValue(c Cell) interface{} {
	switch v := c.(type) {
	case I64Cell:
		return int64(v)
	case StringCell:
		return string(v)
	default:
		return nil
	}
}

// SliceRow is a Row backed by a slice.
type SliceRow struct {
	cells []Cell
}

// NewSliceRow returns an empty row with room for n cells.
func NewSliceRow(n int) *SliceRow {
	return &SliceRow{cells: make([]Cell, 0, n)}
}

// Push appends a cell.
func (r *SliceRow) Push(cell Cell) { r.cells = append(r.cells, cell) }

// Cells returns the pushed cells.
func (r *SliceRow) Cells() []Cell { return r.cells }

// Reset empties the row for reuse.
func (r *SliceRow) Reset() { r.cells = r.cells[:0] }

// Values returns the cells converted with CellValue.
func (r *SliceRow) Values() []interface{} {
	out := make([]interface{}, len(r.cells))
	for i, c := range r.cells {
		out[i] = CellValue(c)
	}
	return out
}
