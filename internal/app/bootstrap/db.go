// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	userstore "github.com/dkpmalut/lautdata/internal/app/store/users"
	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/indexes"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// EnsureSchema loads the chart catalog, creates the indexes of every
// collection it names and ensures the bootstrap admin account.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	cat, err := chartcatalog.LoadFile(appCfg.CatalogPath)
	if err != nil {
		return err
	}
	if deps.state != nil {
		deps.state.catalog = cat
	}
	logger.Info("chart catalog loaded",
		zap.Int("datasets", len(cat.Datasets)),
		zap.Int("charts", len(cat.Charts)))

	if err := indexes.EnsureAll(ctx, deps.MongoDatabase, cat.DatasetNames(), logger); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	if appCfg.AdminEmail != "" {
		users := userstore.New(deps.MongoDatabase)
		if err := users.EnsureAdmin(ctx, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
			return fmt.Errorf("ensure admin %s: %w", appCfg.AdminEmail, err)
		}
	}
	return nil
}
