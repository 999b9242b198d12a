package main

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/json"
)

const (
	formatTable  = "table"
	formatJSON   = "json"
	formatNDJSON = "ndjson"
)

// writeRows renders rows under headers. Absent cells print as empty in a
// table and as null in JSON.
func writeRows(w io.Writer, format string, headers []string, rows [][]interface{}) error {
	switch format {
	case "", formatTable:
		writeTable(w, headers, rows)
		return nil
	case formatJSON, formatNDJSON:
		enc := json.NewStreamingEncoder(w, format == formatJSON)
		if format == formatJSON {
			enc.SetPretty(true, "  ")
		}
		for _, row := range rows {
			if err := enc.Encode(json.NewObject(headers, row)); err != nil {
				return err
			}
		}
		return enc.Close()
	default:
		return errors.Newf(errors.CodeInvalidOption, "unknown output format %q", format).
			WithDetail(errors.DetailOption, "format")
	}
}

func writeTable(w io.Writer, headers []string, rows [][]interface{}) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		table.Append(cells)
	}
	table.Render()
}
