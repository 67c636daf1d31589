// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (LAUTDATA_*), configuration
// files, or command-line flags (loaded in LoadConfig). Framework settings
// such as ports, TLS and log level stay in WAFFLE's CoreConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Upper bound on pooled connections

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: lautdata-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Lifetime of an admin session

	// Bootstrap admin account, ensured at startup when AdminEmail is set
	AdminEmail    string
	AdminPassword string

	// Export store configuration
	ExportStore     string // "local" or "s3"
	ExportLocalPath string // Directory for local exports
	ExportLocalURL  string // URL prefix local exports are served under

	// S3 configuration (only used if ExportStore is "s3")
	ExportS3Region   string
	ExportS3Bucket   string
	ExportS3Prefix   string
	ExportS3Endpoint string // Optional, for S3-compatible services
	ExportPublicURL  string // Optional public URL prefix in front of the bucket

	// Dataset reads
	CatalogPath     string        // Optional YAML chart catalog replacing the embedded one
	DatasetCacheTTL time.Duration // How long a loaded dataset is served before a reload
	FetchPageSize   int           // Rows per MongoDB page read

	// Audit trail destinations: "all", "db", "log" or "off"
	AuditAuth string
	AuditData string

	// Operation timeouts (zero keeps the built-in default)
	TimeoutShort  time.Duration
	TimeoutFetch  time.Duration
	TimeoutExport time.Duration
	TimeoutImport time.Duration
}
