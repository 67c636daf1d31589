// Command lautdatactl manages lautdata datasets from the shell: bulk
// imports, import batches and chart reports without the admin console.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/system/chartcatalog"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	mongoURI    string
	database    string
	catalogPath string
	timeout     time.Duration
	verbose     bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "lautdatactl",
	Short:        "Kelola dataset statistik kelautan dan perikanan",
	Long:         `lautdatactl imports dataset files, manages import batches and renders chart reports straight from MongoDB.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&mongoURI, "mongo-uri", envOr("LAUTDATA_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	pf.StringVar(&database, "database", envOr("LAUTDATA_MONGO_DATABASE", "lautdata"), "MongoDB database name")
	pf.StringVar(&catalogPath, "catalog", os.Getenv("LAUTDATA_CATALOG_PATH"), "YAML chart catalog (blank uses the built-in catalog)")
	pf.DurationVar(&timeout, "timeout", 2*time.Minute, "Deadline for the whole command")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(importCmd, batchesCmd, deleteBatchCmd, printCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// connect opens and pings MongoDB. The caller disconnects the client.
func connect(ctx context.Context) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Debug("connected to MongoDB", zap.String("database", database))
	return client, client.Database(database), nil
}

// withDB runs fn against the configured database under the command deadline.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, db *mongo.Database, cat *chartcatalog.Catalog) error) error {
	cat, err := chartcatalog.LoadFile(catalogPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	client, db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}()
	return fn(ctx, db, cat)
}
