package sheets

import (
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sheets/pkg/config"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/core"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/registry"
)

func init() {
	_ = registry.Register(registry.ConnectorInfo{
		Name:         Name,
		Description:  "Reads Google Sheets tabs through the gviz query endpoint",
		Version:      Version,
		Capabilities: []string{"scan", "describe", "list_sheets"},
		Options: []string{
			config.OptionBaseURL,
			config.OptionSpreadsheetID,
			config.OptionSheetID,
			config.OptionSheetName,
			config.OptionSAKey,
			config.OptionSAKeyFile,
		},
	}, func(logger *zap.Logger) (core.Routines, error) {
		return New(logger), nil
	})
}
