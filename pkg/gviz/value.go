package gviz

import (
	"bytes"
	"strconv"

	"github.com/ajitpratap0/nebula-sheets/pkg/json"
)

// Kind enumerates the shapes a cell value can take on the wire.
type Kind int

const (
	// KindAbsent means the cell, or its "v" field, does not exist.
	KindAbsent Kind = iota
	// KindNull is an explicit JSON null.
	KindNull
	KindNumber
	KindString
	KindBool
	// KindOther covers objects and arrays, kept as raw JSON.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindOther:
		return "other"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a decoded cell value. The zero Value is absent.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	raw  json.RawMessage
}

// Absent returns the absent value.
func Absent() Value { return Value{} }

// Null returns the explicit null value.
func Null() Value { return Value{kind: KindNull} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsMissing is true for both absent and null values.
func (v Value) IsMissing() bool {
	return v.kind == KindAbsent || v.kind == KindNull
}

// Float returns the number held by v.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Raw returns the undecoded JSON of a KindOther value.
func (v Value) Raw() json.RawMessage {
	return v.raw
}

// GoString renders v for debugging.
func (v Value) GoString() string {
	switch v.kind {
	case KindNumber:
		return "Number(" + strconv.FormatFloat(v.num, 'g', -1, 64) + ")"
	case KindString:
		return "String(" + strconv.Quote(v.str) + ")"
	case KindBool:
		return "Bool(" + strconv.FormatBool(v.b) + ")"
	case KindOther:
		return "Other(" + string(v.raw) + ")"
	default:
		return v.kind.String()
	}
}

// decodeValue classifies a raw "v" field. A nil raw message means the field
// was not present.
func decodeValue(raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Absent(), nil
	}

	switch raw[0] {
	case 'n':
		return Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return String(s), nil
	case '{', '[':
		return Value{kind: KindOther, raw: append(json.RawMessage(nil), raw...)}, nil
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return Value{}, err
		}
		return Number(f), nil
	}
}
