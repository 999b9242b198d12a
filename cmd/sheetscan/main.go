package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/nebula-sheets/pkg/connector/registry"

	_ "github.com/ajitpratap0/nebula-sheets/pkg/connector/sources"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	v.SetEnvPrefix("SHEETSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "sheetscan",
		Short: "Read Google Sheets tabs as typed rows",
		Long: `sheetscan drives the sheets connector from the command line.

A table is described by a YAML file (see --config) or by flags. Every flag
can also be set through the environment with the SHEETSCAN_ prefix, for
example SHEETSCAN_SA_KEY_FILE=/secrets/key.json.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a table configuration YAML file")
	flags.String("spreadsheet-id", "", "Spreadsheet id (overrides the config file)")
	flags.String("sheet-id", "", "Tab gid (overrides the config file)")
	flags.String("sheet-name", "", "Tab title, resolved through the Sheets API")
	flags.String("base-url", "", "Base URL of the gviz endpoint")
	flags.String("sa-key-file", "", "Path to a service account key JSON file")
	flags.StringSlice("column", nil, "Projected column as name:type, repeatable")
	flags.String("log-level", "", "Log level (debug, info, warn, error); defaults to observability.log_level")
	flags.Duration("timeout", 0, "Overall timeout, 0 uses the config's scan timeout")
	flags.Bool("trace", false, "Print OpenTelemetry spans to stderr")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")

	root.AddCommand(
		newScanCmd(v),
		newDescribeCmd(v),
		newSheetsCmd(v),
		newListCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sheetscan v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available connectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range registry.List() {
				info, err := registry.Info(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s v%s  %s\n", info.Name, info.Version, info.Description)
				fmt.Fprintf(out, "  options: %s\n", strings.Join(info.Options, ", "))
			}
			return nil
		},
	}
}
