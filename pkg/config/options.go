package config

import (
	"sort"

	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
)

// Option keys understood by the sheets connector.
const (
	// OptionBaseURL is the server-level base path of the gviz endpoint
	OptionBaseURL = "base_url"
	// OptionSpreadsheetID is the table-level spreadsheet identifier
	OptionSpreadsheetID = "spread_sheet_id"
	// OptionSheetID is the table-level tab identifier (gid)
	OptionSheetID = "sheet_id"
	// OptionSheetName selects a tab by title when no sheet_id is given
	OptionSheetName = "sheet_name"
	// OptionSAKey holds the service account key JSON
	OptionSAKey = "sa_key"
	// OptionSAKeyFile points at a file holding the service account key JSON
	OptionSAKeyFile = "sa_key_file"
)

// Options is a flat string key-value mapping, the shape in which hosts hand
// server-, table- and user-level settings to a connector.
type Options map[string]string

// Get returns the value for key and whether it was set.
func (o Options) Get(key string) (string, bool) {
	v, ok := o[key]
	return v, ok
}

// Require returns the value for key or a config/missing_option error.
func (o Options) Require(key string) (string, error) {
	v, ok := o[key]
	if !ok {
		return "", errors.Newf(errors.CodeMissingOption, "required option %q is not specified", key).
			WithDetail(errors.DetailOption, key)
	}
	return v, nil
}

// RequireOr returns the value for key, or def when the key is not set.
func (o Options) RequireOr(key, def string) string {
	if v, ok := o[key]; ok {
		return v
	}
	return def
}

// Clone returns a copy that can be modified independently.
func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Keys returns the option keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
