package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/nebula-sheets/pkg/connector/sources/sheets"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
)

func newScanCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a tab and print its rows",
		Example: `  sheetscan scan --spreadsheet-id 1abc --sheet-id 0 \
    --sa-key-file key.json --column id:bigint --column name:text`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			errOut := cmd.ErrOrStderr()
			env, err := setup(cmd, v, func(msg string) { fmt.Fprintln(errOut, msg) })
			if err != nil {
				return err
			}
			defer env.cleanup()

			rows, err := env.session.Collect(env.ctx)
			if err != nil {
				return err
			}

			headers := make([]string, len(env.cfg.Columns))
			for i, col := range env.cfg.Columns {
				headers[i] = col.Name
			}
			return writeRows(out, v.GetString("format"), headers, rows)
		},
	}
	cmd.Flags().StringP("format", "f", formatTable, "Output format (table, json, ndjson)")
	return cmd
}

func newDescribeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Show the columns of a tab and the type to declare for each",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, v, nil)
			if err != nil {
				return err
			}
			defer env.cleanup()

			specs, err := env.session.Describe(env.ctx)
			if err != nil {
				return err
			}

			headers := []string{"num", "id", "label", "type", "scannable"}
			rows := make([][]interface{}, len(specs))
			for i, s := range specs {
				rows[i] = []interface{}{s.Num, s.ID, s.Label, s.Type.String(), s.Scannable}
			}
			return writeRows(cmd.OutOrStdout(), v.GetString("format"), headers, rows)
		},
	}
	cmd.Flags().StringP("format", "f", formatTable, "Output format (table, json, ndjson)")
	return cmd
}

func newSheetsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List the tabs of a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(cmd, v, nil)
			if err != nil {
				return err
			}
			defer env.cleanup()

			conn, ok := env.session.Routines().(*sheets.Connector)
			if !ok {
				return errors.New(errors.CodeInternal, "registered connector is not the sheets connector")
			}
			tabs, err := conn.Sheets(env.ctx, env.session)
			if err != nil {
				return err
			}

			headers := []string{"gid", "title", "index", "rows", "columns"}
			rows := make([][]interface{}, len(tabs))
			for i, t := range tabs {
				rows[i] = []interface{}{t.ID, t.Title, t.Index, t.RowCount, t.ColumnCount}
			}
			return writeRows(cmd.OutOrStdout(), v.GetString("format"), headers, rows)
		},
	}
	cmd.Flags().StringP("format", "f", formatTable, "Output format (table, json, ndjson)")
	return cmd
}

func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}
