package clients

import (
	"github.com/ajitpratap0/nebula-sheets/pkg/config"
)

// HTTPConfigFromSheets applies a table's timeouts and retry policy on top
// of DefaultHTTPConfig. Zero values keep the defaults.
func HTTPConfigFromSheets(cfg *config.SheetsConfig) *HTTPConfig {
	hc := DefaultHTTPConfig()
	if cfg == nil {
		return hc
	}

	if t := cfg.Timeouts.Request; t > 0 {
		hc.RequestTimeout = t
		hc.ResponseHeaderTimeout = t
	}
	if t := cfg.Timeouts.Connection; t > 0 {
		hc.DialTimeout = t
		hc.TLSHandshakeTimeout = t
	}

	r := cfg.Reliability
	if r.RetryAttempts >= 0 {
		hc.MaxRetries = uint64(r.RetryAttempts)
	}
	if r.RetryDelay > 0 {
		hc.InitialInterval = r.RetryDelay
	}
	if r.RetryMultiplier >= 1 {
		hc.Multiplier = r.RetryMultiplier
	}
	if r.MaxRetryDelay > 0 {
		hc.MaxInterval = r.MaxRetryDelay
	}
	return hc
}
