package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                     string
	Env                      string
	LogLevel                 string
	AllowedOrigin            string
	AuthSecret               string
	AccessTokenTTLMinutes    int
	SeedAdminPassword        string
	SeedStaffPassword        string
	SnapshotBackend          string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	ERPMode                  string
	ERPBaseURL               string
	ERPAPIKey                string
	ERPUsername              string
	ERPPassword              string
	ERPTaxPercent            string
	ERPSyncTimeoutSeconds    int
	ERPQueueSize             int
	PriceOverridePolicy      string
	CreditSalesUpdateBalance bool
	ReportCacheTTLSeconds    int
}

// Load reads the environment, falling back to an optional .env file in the
// working directory. Environment variables win.
func Load() Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	return Config{
		Port:                     getString(v, "PORT", "8080"),
		Env:                      getString(v, "APP_ENV", "development"),
		LogLevel:                 getString(v, "LOG_LEVEL", "info"),
		AllowedOrigin:            getString(v, "ALLOWED_ORIGIN", "http://127.0.0.1:5173"),
		AuthSecret:               strings.TrimSpace(getString(v, "AUTH_SECRET", "")),
		AccessTokenTTLMinutes:    getPositiveInt(v, "ACCESS_TOKEN_TTL_MINUTES", 480),
		SeedAdminPassword:        strings.TrimSpace(getString(v, "SEED_ADMIN_PASSWORD", "")),
		SeedStaffPassword:        strings.TrimSpace(getString(v, "SEED_STAFF_PASSWORD", "")),
		SnapshotBackend:          strings.ToLower(getString(v, "SNAPSHOT_BACKEND", "memory")),
		DatabaseURL:              getString(v, "DATABASE_URL", ""),
		RedisAddr:                getString(v, "REDIS_ADDR", ""),
		RedisPassword:            getString(v, "REDIS_PASSWORD", ""),
		RedisDB:                  getInt(v, "REDIS_DB", 0),
		ERPMode:                  strings.ToLower(getString(v, "ERP_MODE", "disabled")),
		ERPBaseURL:               getString(v, "ERP_BASE_URL", ""),
		ERPAPIKey:                strings.TrimSpace(getString(v, "ERP_API_KEY", "")),
		ERPUsername:              getString(v, "ERP_USERNAME", ""),
		ERPPassword:              getString(v, "ERP_PASSWORD", ""),
		ERPTaxPercent:            getString(v, "ERP_TAX_PERCENT", "18"),
		ERPSyncTimeoutSeconds:    getPositiveInt(v, "ERP_SYNC_TIMEOUT_SECONDS", 5),
		ERPQueueSize:             getPositiveInt(v, "ERP_QUEUE_SIZE", 64),
		PriceOverridePolicy:      strings.ToLower(getString(v, "PRICE_OVERRIDE_POLICY", "keep_first")),
		CreditSalesUpdateBalance: getBool(v, "CREDIT_SALES_UPDATE_BALANCE", false),
		ReportCacheTTLSeconds:    getPositiveInt(v, "REPORT_CACHE_TTL_SECONDS", 30),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if !v.IsSet(key) {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return n
}

func getPositiveInt(v *viper.Viper, key string, def int) int {
	n := getInt(v, key, def)
	if n < 1 {
		return def
	}
	return n
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}
