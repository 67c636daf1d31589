// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	aboutfeature "github.com/dkpmalut/lautdata/internal/app/features/about"
	auditlogfeature "github.com/dkpmalut/lautdata/internal/app/features/auditlog"
	contactfeature "github.com/dkpmalut/lautdata/internal/app/features/contact"
	errorsfeature "github.com/dkpmalut/lautdata/internal/app/features/errors"
	healthfeature "github.com/dkpmalut/lautdata/internal/app/features/health"
	homefeature "github.com/dkpmalut/lautdata/internal/app/features/home"
	importsfeature "github.com/dkpmalut/lautdata/internal/app/features/imports"
	loginfeature "github.com/dkpmalut/lautdata/internal/app/features/login"
	logoutfeature "github.com/dkpmalut/lautdata/internal/app/features/logout"
	messagesfeature "github.com/dkpmalut/lautdata/internal/app/features/messages"
	statisticsfeature "github.com/dkpmalut/lautdata/internal/app/features/statistics"
	"github.com/dkpmalut/lautdata/internal/app/store/audit"
	datasetstore "github.com/dkpmalut/lautdata/internal/app/store/datasets"
	messagestore "github.com/dkpmalut/lautdata/internal/app/store/messages"
	userstore "github.com/dkpmalut/lautdata/internal/app/store/users"
	"github.com/dkpmalut/lautdata/internal/app/system/auditlog"
	"github.com/dkpmalut/lautdata/internal/app/system/auth"
	"github.com/dkpmalut/lautdata/internal/app/system/exportstore"
	"github.com/dkpmalut/lautdata/internal/app/system/metrics"
	"github.com/dkpmalut/lautdata/internal/app/system/ratelimit"
	"github.com/dkpmalut/lautdata/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Contact form submissions allowed per client IP and window.
const (
	contactLimit  = 5
	contactWindow = 10 * time.Minute
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. It boots the template engine, builds
// the dataset pipeline (fetcher, shared cache, export store) and mounts
// the public statistics pages next to the admin console.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.state == nil || deps.state.catalog == nil {
		return nil, errors.New("chart catalog not loaded")
	}
	cat := deps.state.catalog

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	reg := metrics.New()

	auditStore := audit.New(deps.MongoDatabase)
	auditLogger := auditlog.New(auditStore, logger, auditlog.Config{
		Auth: appCfg.AuditAuth,
		Data: appCfg.AuditData,
	})

	// Dataset pipeline: paged MongoDB reads behind one shared cache.
	datasets := datasetstore.New(deps.MongoDatabase)
	fetcher := datasetstore.NewFetcher(datasets, appCfg.FetchPageSize, logger, reg)
	cache := datasetstore.NewCache(fetcher, appCfg.DatasetCacheTTL, timeouts.Fetch(), logger, reg)

	pubCtx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
	defer cancel()
	publisher, err := exportstore.New(pubCtx, exportstore.Config{
		Kind:       appCfg.ExportStore,
		LocalPath:  appCfg.ExportLocalPath,
		LocalURL:   appCfg.ExportLocalURL,
		S3Region:   appCfg.ExportS3Region,
		S3Bucket:   appCfg.ExportS3Bucket,
		S3Prefix:   appCfg.ExportS3Prefix,
		S3Endpoint: appCfg.ExportS3Endpoint,
		PublicURL:  appCfg.ExportPublicURL,
	}, logger)
	if err != nil {
		logger.Error("export store init failed", zap.Error(err))
		return nil, err
	}

	loginLimiter := ratelimit.NewLoginLimiter()
	contactLimiter := ratelimit.New(contactLimit, contactWindow)
	deps.onShutdown(loginLimiter.Close)
	deps.onShutdown(contactLimiter.Close)

	errorsHandler := errorsfeature.NewHandler()

	r := chi.NewRouter()

	// Set before any Mount so feature subrouters inherit it.
	r.NotFound(errorsHandler.NotFound)

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", reg.Handler())

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Published exports are served by the app only for the local store.
	if kind := strings.ToLower(appCfg.ExportStore); kind == "" || kind == "local" {
		prefix := "/" + strings.Trim(appCfg.ExportLocalURL, "/")
		r.Handle(prefix+"/*", fileserver.Handler(prefix, appCfg.ExportLocalPath))
	}

	// Public pages
	homeHandler := homefeature.NewHandler(cat, logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	aboutHandler := aboutfeature.NewHandler(cat, logger)
	r.Mount("/about", aboutfeature.Routes(aboutHandler))

	contactHandler := contactfeature.NewHandler(messagestore.New(deps.MongoDatabase), contactLimiter, logger)
	r.Mount("/contact", contactfeature.Routes(contactHandler))

	statsHandler := statisticsfeature.NewHandler(cat, cache, publisher, reg, auditLogger, logger)
	r.Mount("/statistik", statisticsfeature.Routes(statsHandler, sessionMgr))

	// Authentication
	loginHandler := loginfeature.NewHandler(userstore.New(deps.MongoDatabase), sessionMgr, loginLimiter, auditLogger, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler, sessionMgr))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	// Error pages
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)

	// Admin console
	importsHandler := importsfeature.NewHandler(cat, datasets, cache, reg, auditLogger, logger)
	r.Mount("/admin/imports", importsfeature.Routes(importsHandler, sessionMgr))

	messagesHandler := messagesfeature.NewHandler(messagestore.New(deps.MongoDatabase), auditLogger, logger)
	r.Mount("/admin/messages", messagesfeature.Routes(messagesHandler, sessionMgr))

	auditHandler := auditlogfeature.NewHandler(auditStore, logger)
	r.Mount("/admin/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

	return r, nil
}
