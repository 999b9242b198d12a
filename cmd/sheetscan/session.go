package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sheets/pkg/clients"
	"github.com/ajitpratap0/nebula-sheets/pkg/config"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/sources"
	"github.com/ajitpratap0/nebula-sheets/pkg/connector/sources/sheets"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
	"github.com/ajitpratap0/nebula-sheets/pkg/host"
	"github.com/ajitpratap0/nebula-sheets/pkg/logger"
	"github.com/ajitpratap0/nebula-sheets/pkg/metrics"
	"github.com/ajitpratap0/nebula-sheets/pkg/observability"
)

// buildConfig loads the config file, if any, and applies flag and
// environment overrides on top.
func buildConfig(v *viper.Viper) (*config.SheetsConfig, error) {
	var cfg *config.SheetsConfig
	if path := v.GetString("config"); path != "" {
		loaded, err := config.LoadSheetsConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.NewSheetsConfig("sheetscan")
	}

	setOption(cfg.Server, config.OptionBaseURL, v.GetString("base-url"))
	setOption(cfg.Table, config.OptionSpreadsheetID, v.GetString("spreadsheet-id"))
	setOption(cfg.Table, config.OptionSheetID, v.GetString("sheet-id"))
	setOption(cfg.Table, config.OptionSheetName, v.GetString("sheet-name"))
	setOption(cfg.Credentials, config.OptionSAKeyFile, v.GetString("sa-key-file"))
	setOption(cfg.Credentials, config.OptionSAKey, v.GetString("sa-key"))

	if cols := v.GetStringSlice("column"); len(cols) > 0 {
		cfg.Columns = cfg.Columns[:0]
		for _, colFlag := range cols {
			name, typ, ok := strings.Cut(colFlag, ":")
			if !ok || name == "" || typ == "" {
				return nil, errors.Newf(errors.CodeInvalidOption, "column %q must be name:type", colFlag)
			}
			cfg.Columns = append(cfg.Columns, config.ColumnConfig{Name: name, Type: typ})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setOption(opts config.Options, key, value string) {
	if value != "" {
		opts[key] = value
	}
}

// runtimeEnv bundles what every command needs: a session, a context bound
// to the timeout, and a cleanup function.
type runtimeEnv struct {
	cfg     *config.SheetsConfig
	session *host.Session
	logger  *zap.Logger
	ctx     context.Context
	cleanup func()
}

func setup(cmd interface{ Context() context.Context }, v *viper.Viper, infos func(string)) (*runtimeEnv, error) {
	cfg, err := buildConfig(v)
	if err != nil {
		return nil, err
	}

	level := v.GetString("log-level")
	if level == "" {
		level = cfg.Observability.LogLevel
	}
	if err := logger.Init(logger.Config{Level: level, Encoding: "console", OutputPaths: []string{"stderr"}}); err != nil {
		return nil, err
	}
	log := logger.Get()

	var closers []func()

	if v.GetBool("trace") || cfg.Observability.EnableTracing {
		tcfg := observability.DefaultTracingConfig()
		tcfg.Output = os.Stderr
		if err := observability.Init(context.Background(), tcfg); err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = observability.Shutdown(context.Background()) })
	}

	if addr := v.GetString("metrics-addr"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		closers = append(closers, func() { _ = srv.Close() })
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	conn, err := sources.NewSheetsSource(log,
		sheets.WithFetcher(clients.NewHTTPClient(clients.HTTPConfigFromSheets(cfg), log)),
	)
	if err != nil {
		closeAll()
		return nil, err
	}

	session, err := host.FromConfig(conn, cfg,
		host.WithLogger(log),
		host.WithInfoHandler(infos),
	)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, func() { _ = session.Close() })

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithConnector(ctx, sheets.Name)

	timeout := v.GetDuration("timeout")
	if timeout == 0 {
		timeout = cfg.Timeouts.Scan
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	closers = append(closers, cancel)

	return &runtimeEnv{
		cfg:     cfg,
		session: session,
		logger:  log,
		ctx:     ctx,
		cleanup: func() {
			closeAll()
			_ = logger.Sync()
		},
	}, nil
}
