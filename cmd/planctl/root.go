package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fdg312/meal-hub/internal/config"
	"github.com/fdg312/meal-hub/internal/storage"
	"github.com/fdg312/meal-hub/internal/storage/backend"
)

var rootCmd = &cobra.Command{
	Use:           "planctl",
	Short:         "Meal plan maintenance tool",
	Long:          "planctl seeds the dish catalog, reconciles shopping lists and renders exports directly against the configured database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .planctl.yaml)")
	rootCmd.PersistentFlags().String("db-driver", "", "storage driver: postgres|sqlite|mysql|memory")
	rootCmd.PersistentFlags().String("database-url", "", "postgres connection URL")
	rootCmd.PersistentFlags().String("sqlite-path", "", "sqlite database file")
	rootCmd.PersistentFlags().String("mysql-dsn", "", "mysql DSN")
	rootCmd.PersistentFlags().String("user", "", "user id the command acts on")

	_ = viper.BindPFlag("db_driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	_ = viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("sqlite_path", rootCmd.PersistentFlags().Lookup("sqlite-path"))
	_ = viper.BindPFlag("mysql_dsn", rootCmd.PersistentFlags().Lookup("mysql-dsn"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".planctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("PLANCTL")
	viper.AutomaticEnv()

	// No config file is fine; env and flags still apply.
	_ = viper.ReadInConfig()
}

// resolveConfig starts from the server environment and applies planctl
// overrides from flags, PLANCTL_* env or .planctl.yaml.
func resolveConfig(v *viper.Viper) *config.Config {
	cfg := config.Load()

	if url := strings.TrimSpace(v.GetString("database_url")); url != "" {
		cfg.DatabaseURL = url
		if v.GetString("db_driver") == "" {
			cfg.DBDriver = config.DriverPostgres
		}
	}
	if p := strings.TrimSpace(v.GetString("sqlite_path")); p != "" {
		cfg.SQLitePath = p
	}
	if dsn := strings.TrimSpace(v.GetString("mysql_dsn")); dsn != "" {
		cfg.MySQLDSN = dsn
	}
	if d := strings.ToLower(strings.TrimSpace(v.GetString("db_driver"))); d != "" {
		cfg.DBDriver = d
	}
	return cfg
}

func openStorage(ctx context.Context) (storage.Storage, error) {
	cfg := resolveConfig(viper.GetViper())
	st, driver, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if driver == config.DriverMemory {
		fmt.Fprintln(os.Stderr, "warning: using in-memory storage, changes are discarded on exit")
	}
	return st, nil
}

func requireUserFlag() (string, error) {
	user := strings.TrimSpace(viper.GetString("user"))
	if user == "" {
		return "", fmt.Errorf("--user (or PLANCTL_USER) is required")
	}
	return user, nil
}
