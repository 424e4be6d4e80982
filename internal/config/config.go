package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"

	AuthModeNone = "none"
	AuthModeDev  = "dev"
)

// Config содержит конфигурацию приложения
type Config struct {
	Env      string // local | staging | prod
	Port     int
	LogLevel string

	// Database
	DBDriver          string // postgres | sqlite | mysql | memory
	DatabaseURL       string // runtime connection (resolved: pooled > url > direct)
	DatabaseURLRaw    string // DATABASE_URL as provided
	DatabaseURLPooled string // DATABASE_URL_POOLED as provided
	DatabaseURLDirect string // for migrations / DDL (may be empty)
	SQLitePath        string
	MySQLDSN          string

	// CORS
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	// Rate Limiting
	RateLimitRPS   int
	RateLimitBurst int

	// Blob / exports
	Blob                   BlobConfig
	ExportsDefaultTTLHours int

	// Planner
	PlanMaxRangeDays        int
	ShoppingTolerateReadErr bool
	ShoppingUncategorized   string

	// Catalog
	CatalogSeedFile string
	CatalogWatch    bool

	// Idempotency (Redis when REDIS_ADDR is set)
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	IdempotencyTTLSeconds int

	// gRPC health
	GRPCPort int

	// Authentication
	AuthMode      string // none | dev
	AuthRequired  bool
	DefaultUserID string
	JWTSecret     string
	JWTIssuer     string
	JWTTTLMinutes int

	// Migrations
	RunMigrationsOnStartup bool
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	// APP_ENV (fallback to ENV for backward compat, default: local)
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = "local"
	}

	port := envInt("PORT", 8080)

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "debug"
	}

	// ---------- Database ----------
	// Priority: DATABASE_URL_POOLED > DATABASE_URL > DATABASE_URL_DIRECT
	dbPooled := strings.TrimSpace(os.Getenv("DATABASE_URL_POOLED"))
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	dbDirect := strings.TrimSpace(os.Getenv("DATABASE_URL_DIRECT"))

	runtimeDB := dbPooled
	if runtimeDB == "" {
		runtimeDB = dbURL
	}
	if runtimeDB == "" {
		runtimeDB = dbDirect
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if sqlitePath == "" {
		sqlitePath = "meal-hub.db"
	}
	mysqlDSN := strings.TrimSpace(os.Getenv("MYSQL_DSN"))

	dbDriver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if dbDriver == "" {
		// Without an explicit driver, a DATABASE_URL means postgres
		if runtimeDB != "" {
			dbDriver = DriverPostgres
		} else {
			dbDriver = DriverMemory
		}
	}
	switch dbDriver {
	case DriverPostgres, DriverSQLite, DriverMySQL, DriverMemory:
	default:
		log.Printf("WARNING: unknown DB_DRIVER=%q, fallback to %s", dbDriver, DriverMemory)
		dbDriver = DriverMemory
	}

	runMigrationsOnStartup := parseBoolEnv("RUN_MIGRATIONS_ON_STARTUP")

	// ---------- CORS ----------
	corsOrigins := parseCORSOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"), env)
	corsAllowCreds := os.Getenv("CORS_ALLOW_CREDENTIALS") == "1"

	// ---------- Rate Limiting ----------
	rateLimitRPS := envInt("RATE_LIMIT_RPS", 0)
	rateLimitBurst := envInt("RATE_LIMIT_BURST", 0)

	// ---------- Blob / S3 ----------
	blobMode := parseBlobMode("BLOB_MODE", BlobModeLocal)
	exportsModeRaw := strings.ToLower(strings.TrimSpace(os.Getenv("EXPORTS_MODE")))
	exportsModeSet := exportsModeRaw != ""
	exportsMode := exportsModeRaw
	if exportsMode == "" {
		exportsMode = BlobModeLocal
	}
	if exportsMode != BlobModeLocal && exportsMode != BlobModeS3 && exportsMode != BlobModeAuto {
		log.Printf("WARNING: unknown EXPORTS_MODE=%q, fallback to %s", exportsMode, BlobModeLocal)
		exportsMode = BlobModeLocal
	}

	s3PresignTTL := envInt("S3_PRESIGN_TTL_SECONDS", 900)
	if s3PresignTTL <= 0 {
		s3PresignTTL = 900
	}

	blobCfg := BlobConfig{
		Mode:           blobMode,
		ExportsMode:    exportsMode,
		ExportsModeSet: exportsModeSet,
		S3: S3Config{
			Endpoint:          strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			Region:            strings.TrimSpace(os.Getenv("S3_REGION")),
			Bucket:            strings.TrimSpace(os.Getenv("S3_BUCKET")),
			AccessKeyID:       strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
			SecretAccessKey:   strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
			PublicBaseURL:     strings.TrimSpace(os.Getenv("S3_PUBLIC_BASE_URL")),
			PresignTTLSeconds: s3PresignTTL,
			PreferPublicURL:   parseBoolEnv("S3_PREFER_PUBLIC_URL"),
		},
	}

	exportsDefaultTTL := envInt("EXPORTS_DEFAULT_TTL_HOURS", 168)

	// ---------- Planner ----------
	planMaxRangeDays := envInt("PLAN_MAX_RANGE_DAYS", 62)
	if planMaxRangeDays <= 0 {
		planMaxRangeDays = 62
	}
	uncategorized := strings.TrimSpace(os.Getenv("SHOPPING_UNCATEGORIZED_LABEL"))
	if uncategorized == "" {
		uncategorized = "Uncategorized"
	}

	// ---------- Idempotency ----------
	idempotencyTTL := envInt("IDEMPOTENCY_TTL_SECONDS", 86400)
	if idempotencyTTL <= 0 {
		idempotencyTTL = 86400
	}

	// ---------- Auth ----------
	authMode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if authMode == "" {
		authMode = AuthModeNone
	}
	if authMode != AuthModeNone && authMode != AuthModeDev {
		log.Printf("WARNING: unknown AUTH_MODE=%q, fallback to none", authMode)
		authMode = AuthModeNone
	}
	authRequired := authMode != AuthModeNone && parseBoolEnv("AUTH_REQUIRED")

	defaultUserID := strings.TrimSpace(os.Getenv("AUTH_DEFAULT_USER_ID"))
	if defaultUserID == "" {
		defaultUserID = "local-user"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "change_me"
	}
	if jwtSecret == "change_me" && env != "local" {
		log.Println("WARNING: JWT_SECRET is set to 'change_me' in non-local environment!")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "meal-hub"
	}

	// JWT_TTL_MINUTES (default: 10080 = 7 days)
	jwtTTLMinutes := envInt("JWT_TTL_MINUTES", 10080)

	return &Config{
		Env:      env,
		Port:     port,
		LogLevel: logLevel,

		DBDriver:          dbDriver,
		DatabaseURL:       runtimeDB,
		DatabaseURLRaw:    dbURL,
		DatabaseURLPooled: dbPooled,
		DatabaseURLDirect: dbDirect,
		SQLitePath:        sqlitePath,
		MySQLDSN:          mysqlDSN,

		CORSAllowedOrigins:   corsOrigins,
		CORSAllowCredentials: corsAllowCreds,

		RateLimitRPS:   rateLimitRPS,
		RateLimitBurst: rateLimitBurst,

		Blob:                   blobCfg,
		ExportsDefaultTTLHours: exportsDefaultTTL,

		PlanMaxRangeDays:        planMaxRangeDays,
		ShoppingTolerateReadErr: parseBoolEnv("SHOPPING_LIST_TOLERATE_READ_ERRORS"),
		ShoppingUncategorized:   uncategorized,

		CatalogSeedFile: strings.TrimSpace(os.Getenv("CATALOG_SEED_FILE")),
		CatalogWatch:    parseBoolEnv("CATALOG_WATCH"),

		RedisAddr:             strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               envInt("REDIS_DB", 0),
		IdempotencyTTLSeconds: idempotencyTTL,

		GRPCPort: envInt("GRPC_PORT", 0),

		AuthMode:      authMode,
		AuthRequired:  authRequired,
		DefaultUserID: defaultUserID,
		JWTSecret:     jwtSecret,
		JWTIssuer:     jwtIssuer,
		JWTTTLMinutes: jwtTTLMinutes,

		RunMigrationsOnStartup: runMigrationsOnStartup,
	}
}

// parseCORSOrigins parses CORS_ALLOWED_ORIGINS env var.
// In local mode, defaults to localhost origins if empty.
func parseCORSOrigins(raw, env string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if env == "local" {
			return []string{"http://localhost:3000", "http://localhost:8081"}
		}
		return nil // prod: deny by default
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

func parseBlobMode(key string, defaultVal string) string {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if mode == "" {
		return defaultVal
	}
	switch mode {
	case BlobModeLocal, BlobModeS3, BlobModeAuto:
		return mode
	default:
		log.Printf("WARNING: unknown %s=%q, fallback to %s", key, mode, defaultVal)
		return defaultVal
	}
}

// envInt reads an int env var with a default value.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
