// Package gviz decodes Google Visualization query responses.
//
// The endpoint prefixes its JSON payload with an anti-hijacking line that
// must be stripped before decoding:
//
//	)]}'
//	{"version":"0.6","status":"ok","table":{"cols":[...],"rows":[...]}}
//
// Each row is an object with a "c" array of cells; a cell is either null or
// an object with an optional "v" (value) and "f" (formatted) field.
package gviz

import (
	"bytes"
	"strings"

	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/json"
)

// Prefix is the sentinel line preceding every response.
const Prefix = ")]}'\n"

// Response is a decoded gviz payload.
type Response struct {
	Version  string
	ReqID    string
	Status   string
	Columns  []Column
	Rows     RowSet
	Errors   []Message
	Warnings []Message
}

// Column describes one column of the returned table.
type Column struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Type    string `json:"type"`
	Pattern string `json:"pattern,omitempty"`
}

// Message is an error or warning reported by the endpoint.
type Message struct {
	Reason          string `json:"reason"`
	Message         string `json:"message"`
	DetailedMessage string `json:"detailed_message"`
}

// RowSet is the ordered list of rows returned by one fetch.
type RowSet []Row

// Row is a sparse, positional list of cells.
type Row struct {
	cells []json.RawMessage
}

// NewRow builds a row from values, mainly for tests and fixtures. Absent
// values become null cells.
func NewRow(values ...Value) Row {
	cells := make([]json.RawMessage, len(values))
	for i, v := range values {
		cells[i] = encodeCell(v)
	}
	return Row{cells: cells}
}

// RowFromJSON builds a row from one element of table.rows. Anything that
// is not an object with a "c" array is a row without cells.
func RowFromJSON(raw json.RawMessage) Row {
	if !isObject(raw) {
		return Row{}
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Row{}
	}
	c := obj["c"]
	if !isArray(c) {
		return Row{}
	}
	var cells []json.RawMessage
	if err := json.Unmarshal(c, &cells); err != nil {
		return Row{}
	}
	return Row{cells: cells}
}

// Len returns the number of cell slots present in the row.
func (r Row) Len() int {
	return len(r.cells)
}

// Cell returns the value at zero-based index i. Out-of-range indexes, cells
// that are not objects and cells without a "v" field are all absent.
func (r Row) Cell(i int) (Value, error) {
	if i < 0 || i >= len(r.cells) {
		return Absent(), nil
	}
	raw := r.cells[i]
	if !isObject(raw) {
		return Absent(), nil
	}

	var cell map[string]json.RawMessage
	if err := json.Unmarshal(raw, &cell); err != nil {
		return Absent(), nil
	}
	field, ok := cell["v"]
	if !ok {
		return Absent(), nil
	}
	if len(bytes.TrimSpace(field)) == 0 {
		return Null(), nil
	}
	v, err := decodeValue(field)
	if err != nil {
		return Value{}, errors.Wrap(err, errors.CodeInvalidJSON, "cannot decode cell value")
	}
	return v, nil
}

type wireResponse struct {
	Version  string          `json:"version"`
	ReqID    string          `json:"reqId"`
	Status   string          `json:"status"`
	Errors   []Message       `json:"errors"`
	Warnings []Message       `json:"warnings"`
	Table    json.RawMessage `json:"table"`
}

type wireTable struct {
	Cols []Column        `json:"cols"`
	Rows json.RawMessage `json:"rows"`
}

// Parse strips the sentinel prefix and returns the rows found at
// table.rows.
func Parse(body string) (RowSet, error) {
	resp, err := ParseResponse(body)
	if err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// ParseResponse is Parse plus the response metadata.
func ParseResponse(body string) (*Response, error) {
	if !strings.HasPrefix(body, Prefix) {
		return nil, errors.New(errors.CodeUnexpectedFormat, "response does not start with the gviz prefix").
			WithDetail("head", head(body, 32))
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(body[len(Prefix):]), &wire); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidJSON, "cannot decode gviz response")
	}

	resp := &Response{
		Version:  wire.Version,
		ReqID:    wire.ReqID,
		Status:   wire.Status,
		Errors:   wire.Errors,
		Warnings: wire.Warnings,
	}

	var table wireTable
	if isObject(wire.Table) {
		if err := json.Unmarshal(wire.Table, &table); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidJSON, "cannot decode gviz table")
		}
	}
	if !isArray(table.Rows) {
		return nil, missingRows(resp)
	}

	// Rows are only split here; their cells are checked as they are read.
	var rows []json.RawMessage
	if err := json.Unmarshal(table.Rows, &rows); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidJSON, "cannot decode gviz rows")
	}

	resp.Columns = table.Cols
	resp.Rows = make(RowSet, len(rows))
	for i, raw := range rows {
		resp.Rows[i] = RowFromJSON(raw)
	}
	return resp, nil
}

func missingRows(resp *Response) *errors.Error {
	err := errors.New(errors.CodeMissingRows, "response has no table.rows array")
	if resp.Status != "" {
		err.WithDetail("status", resp.Status)
	}
	if len(resp.Errors) > 0 {
		reasons := make([]string, 0, len(resp.Errors))
		for _, m := range resp.Errors {
			msg := m.Reason
			if m.DetailedMessage != "" {
				msg += ": " + m.DetailedMessage
			} else if m.Message != "" {
				msg += ": " + m.Message
			}
			reasons = append(reasons, msg)
		}
		err.WithDetail(errors.DetailReason, strings.Join(reasons, "; "))
	}
	return err
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func encodeCell(v Value) json.RawMessage {
	var inner interface{}
	switch v.kind {
	case KindAbsent:
		return json.RawMessage("null")
	case KindNull:
		return json.RawMessage(`{"v":null}`)
	case KindNumber:
		inner = v.num
	case KindString:
		inner = v.str
	case KindBool:
		inner = v.b
	case KindOther:
		return json.RawMessage(`{"v":` + string(v.raw) + `}`)
	}
	b, _ := json.Marshal(map[string]interface{}{"v": inner})
	return b
}
