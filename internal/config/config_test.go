package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "ENV", "PORT", "DB_DRIVER", "DATABASE_URL", "DATABASE_URL_POOLED",
		"DATABASE_URL_DIRECT", "AUTH_MODE", "AUTH_REQUIRED", "PLAN_MAX_RANGE_DAYS", "SHOPPING_UNCATEGORIZED_LABEL",
		"JWT_ISSUER", "GRPC_PORT", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "local" || cfg.Port != 8080 {
		t.Errorf("unexpected env/port: %s/%d", cfg.Env, cfg.Port)
	}
	if cfg.DBDriver != DriverMemory {
		t.Errorf("DBDriver = %s, want memory", cfg.DBDriver)
	}
	if cfg.AuthMode != AuthModeNone || cfg.AuthRequired {
		t.Errorf("unexpected auth: %s required=%t", cfg.AuthMode, cfg.AuthRequired)
	}
	if cfg.PlanMaxRangeDays != 62 {
		t.Errorf("PlanMaxRangeDays = %d, want 62", cfg.PlanMaxRangeDays)
	}
	if cfg.ShoppingUncategorized != "Uncategorized" {
		t.Errorf("ShoppingUncategorized = %q", cfg.ShoppingUncategorized)
	}
	if cfg.JWTIssuer != "meal-hub" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("expected localhost CORS defaults, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadDBDriver(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		url    string
		want   string
	}{
		{"url implies postgres", "", "postgres://localhost/meal", DriverPostgres},
		{"explicit sqlite", "sqlite", "", DriverSQLite},
		{"explicit mysql wins over url", "MySQL", "postgres://localhost/meal", DriverMySQL},
		{"unknown falls back", "oracle", "", DriverMemory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_DRIVER", tt.driver)
			t.Setenv("DATABASE_URL", tt.url)
			t.Setenv("DATABASE_URL_POOLED", "")
			t.Setenv("DATABASE_URL_DIRECT", "")

			if got := Load().DBDriver; got != tt.want {
				t.Errorf("DBDriver = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "siwa")
	t.Setenv("AUTH_REQUIRED", "1")
	cfg := Load()
	if cfg.AuthMode != AuthModeNone || cfg.AuthRequired {
		t.Errorf("unknown mode should fall back to none, got %s required=%t", cfg.AuthMode, cfg.AuthRequired)
	}

	t.Setenv("AUTH_MODE", "dev")
	cfg = Load()
	if cfg.AuthMode != AuthModeDev || !cfg.AuthRequired {
		t.Errorf("expected dev/required, got %s required=%t", cfg.AuthMode, cfg.AuthRequired)
	}
}

func TestLoadDatabaseURLPriority(t *testing.T) {
	t.Setenv("DATABASE_URL_POOLED", "postgres://pooled")
	t.Setenv("DATABASE_URL", "postgres://plain")
	t.Setenv("DATABASE_URL_DIRECT", "postgres://direct")

	cfg := Load()
	if cfg.DatabaseURL != "postgres://pooled" {
		t.Errorf("DatabaseURL = %s, want pooled", cfg.DatabaseURL)
	}
	if cfg.DatabaseURLDirect != "postgres://direct" {
		t.Errorf("DatabaseURLDirect = %s", cfg.DatabaseURLDirect)
	}
}
