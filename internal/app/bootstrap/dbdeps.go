// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// state is shared by every copy of DBDeps handed to the hooks.
	state *appState
}

// appState carries what later hooks build on: the catalog loaded in
// EnsureSchema and the cleanups registered in BuildHandler.
type appState struct {
	catalog *chartcatalog.Catalog
	closers []func()
}

func (d DBDeps) onShutdown(fn func()) {
	if d.state != nil {
		d.state.closers = append(d.state.closers, fn)
	}
}

// ConnectDB opens the MongoDB client and verifies it with a ping.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	configureTimeouts(appCfg)

	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))
	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		state:         &appState{},
	}, nil
}
