package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/folio-inc/folio-sync/pkg/audit"
	"github.com/folio-inc/folio-sync/pkg/auth"
	"github.com/folio-inc/folio-sync/pkg/config"
	"github.com/folio-inc/folio-sync/pkg/database"
	"github.com/folio-inc/folio-sync/pkg/handlers"
	"github.com/folio-inc/folio-sync/pkg/logging"
	"github.com/folio-inc/folio-sync/pkg/middleware"
	"github.com/folio-inc/folio-sync/pkg/repositories"
	"github.com/folio-inc/folio-sync/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure at exit is harmless

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Migrations run through database/sql (required by golang-migrate).
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.String("error", logging.SanitizeError(err)))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger.Named("auth"))
	authMiddleware := auth.NewMiddleware(authService, logger.Named("auth"))
	scopeMiddleware := database.WithScope(db, logger.Named("db"))

	auditor := audit.NewSecurityAuditor(logger)

	recordRepo := repositories.NewRecordRepository()
	grantRepo := repositories.NewGrantRepository()
	oplogRepo := repositories.NewOplogRepository()

	grantLookup := services.NewGrantLookup(grantRepo, redisClient, logger)
	pullService := services.NewPullService(recordRepo, grantLookup, &cfg.Sync, logger)
	pushService := services.NewPushService(recordRepo, grantLookup, oplogRepo, auditor, cfg.Sync.MaxBatchSize, logger)
	grantService := services.NewGrantService(grantRepo, grantLookup, auditor, logger)
	historyService := services.NewHistoryService(recordRepo, grantLookup, oplogRepo, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewSyncHandler(pullService, pushService, logger.Named("sync")).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewGrantHandler(grantService, logger.Named("grants")).RegisterRoutes(mux, authMiddleware, scopeMiddleware)
	handlers.NewRecordHistoryHandler(historyService, logger.Named("history")).RegisterRoutes(mux, authMiddleware, scopeMiddleware)

	handler := middleware.RequestLogger(logger.Named("http"))(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting folio-sync",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))

	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		err = http.ListenAndServeTLS(addr, cfg.TLSCertPath, cfg.TLSKeyPath, handler)
	} else {
		err = http.ListenAndServe(addr, handler)
	}
	if err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
