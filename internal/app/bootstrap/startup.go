// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dkpmalut/lautdata/internal/app/resources"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.state == nil || deps.state.catalog == nil {
		return errors.New("chart catalog not loaded")
	}
	resources.LoadSharedTemplates()
	tc := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("ping", tc.Ping),
		zap.Duration("short", tc.Short),
		zap.Duration("fetch", tc.Fetch),
		zap.Duration("export", tc.Export),
		zap.Duration("import", tc.Import))
	return nil
}

func configureTimeouts(appCfg AppConfig) {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Fetch:  appCfg.TimeoutFetch,
		Export: appCfg.TimeoutExport,
		Import: appCfg.TimeoutImport,
	})
}
