// internal/app/bootstrap/config.go
package bootstrap

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	userstore "github.com/dkpmalut/lautdata/internal/app/store/users"
	"github.com/dkpmalut/lautdata/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for lautdata.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: LAUTDATA_MONGO_URI, LAUTDATA_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "lautdata", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "session_key", Default: "", Desc: "Session signing key, 32+ chars (random per process when blank outside prod)"},
	{Name: "session_name", Default: "lautdata-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "12h", Desc: "Admin session lifetime"},

	// Bootstrap admin
	{Name: "admin_email", Default: "", Desc: "Email of the admin account ensured at startup"},
	{Name: "admin_password", Default: "", Desc: "Password used when the admin account has to be created"},

	// Export store
	{Name: "export_store", Default: "local", Desc: "Export store backend: 'local' or 's3'"},
	{Name: "export_local_path", Default: "./exports", Desc: "Directory for published exports"},
	{Name: "export_local_url", Default: "/exports", Desc: "URL prefix for serving local exports"},
	{Name: "export_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "export_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "export_s3_prefix", Default: "exports/", Desc: "S3 key prefix"},
	{Name: "export_s3_endpoint", Default: "", Desc: "Custom S3 endpoint (MinIO and other S3-compatible stores)"},
	{Name: "export_public_url", Default: "", Desc: "Public URL prefix for exported objects"},

	// Dataset reads
	{Name: "catalog_path", Default: "", Desc: "YAML chart catalog (blank uses the built-in catalog)"},
	{Name: "dataset_cache_ttl", Default: "10m", Desc: "How long a loaded dataset is served before it is read again"},
	{Name: "fetch_page_size", Default: 1000, Desc: "Rows per MongoDB page when reading a dataset"},

	// Audit trail
	{Name: "audit_auth", Default: "all", Desc: "Audit sign-in events to: all, db, log or off"},
	{Name: "audit_data", Default: "all", Desc: "Audit imports, deletes and publishes to: all, db, log or off"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document operations"},
	{Name: "timeout_fetch", Default: "30s", Desc: "Timeout for reading the datasets behind one chart"},
	{Name: "timeout_export", Default: "30s", Desc: "Timeout for producing and publishing one export"},
	{Name: "timeout_import", Default: "2m", Desc: "Timeout for one dataset import"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, LAUTDATA_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "LAUTDATA", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 12*time.Hour),

		AdminEmail:    appValues.String("admin_email"),
		AdminPassword: appValues.String("admin_password"),

		ExportStore:      appValues.String("export_store"),
		ExportLocalPath:  appValues.String("export_local_path"),
		ExportLocalURL:   appValues.String("export_local_url"),
		ExportS3Region:   appValues.String("export_s3_region"),
		ExportS3Bucket:   appValues.String("export_s3_bucket"),
		ExportS3Prefix:   appValues.String("export_s3_prefix"),
		ExportS3Endpoint: appValues.String("export_s3_endpoint"),
		ExportPublicURL:  appValues.String("export_public_url"),

		CatalogPath:     appValues.String("catalog_path"),
		DatasetCacheTTL: appValues.Duration("dataset_cache_ttl", 10*time.Minute),
		FetchPageSize:   appValues.Int("fetch_page_size"),

		AuditAuth: strings.ToLower(appValues.String("audit_auth")),
		AuditData: strings.ToLower(appValues.String("audit_data")),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutFetch:  appValues.Duration("timeout_fetch", 0),
		TimeoutExport: appValues.Duration("timeout_export", 0),
		TimeoutImport: appValues.Duration("timeout_import", 0),
	}

	// Outside prod a blank key gets a random one so local runs work out of
	// the box. Sessions then end when the process restarts.
	if appCfg.SessionKey == "" && coreCfg.Env != "prod" {
		appCfg.SessionKey = hex.EncodeToString(securecookie.GenerateRandomKey(32))
		logger.Warn("session_key not set; using a random key for this process")
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// It checks the MongoDB URI format, the session key and the export store
// settings so misconfiguration fails before anything connects.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return errors.New("mongo_database is required")
	}

	if coreCfg.Env == "prod" && len(appCfg.SessionKey) < 32 {
		return errors.New("session_key must be at least 32 characters in prod")
	}

	if appCfg.AdminEmail != "" && appCfg.AdminPassword != "" && len(appCfg.AdminPassword) < userstore.MinPasswordLength {
		return fmt.Errorf("admin_password must be at least %d characters", userstore.MinPasswordLength)
	}

	switch strings.ToLower(appCfg.ExportStore) {
	case "", "local":
		if appCfg.ExportLocalPath == "" {
			return errors.New("export_local_path is required for the local export store")
		}
	case "s3":
		if appCfg.ExportS3Bucket == "" || appCfg.ExportS3Region == "" {
			return errors.New("export_s3_bucket and export_s3_region are required for the s3 export store")
		}
	default:
		return fmt.Errorf("export_store must be 'local' or 's3', got %q", appCfg.ExportStore)
	}

	for key, mode := range map[string]string{"audit_auth": appCfg.AuditAuth, "audit_data": appCfg.AuditData} {
		if mode != "" && !auditlog.ValidMode(mode) {
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, mode)
		}
	}

	if appCfg.FetchPageSize < 0 {
		return errors.New("fetch_page_size must not be negative")
	}
	return nil
}
