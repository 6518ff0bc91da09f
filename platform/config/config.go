// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
// Token issuance is owned by the surrounding system; this backend only validates.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler/worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// EmailConfig provides settings for SMTP email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// GeoConfig provides settings for the distance resolver and its cache.
type GeoConfig interface {
	GetGeocodeURL() string
	GetRoutingURL() string
	GetRedisURL() string
	GetDistanceCacheTTL() time.Duration
	GetDistanceResolveAttempts() int
}

// PricingConfig provides the rate card values for the quote calculator.
// All monetary values are integer öre. None of these are hard-coded in
// calculation logic; policy changes are config changes.
type PricingConfig interface {
	GetBaseRateSmallOre() int64
	GetBaseRateMidOre() int64
	GetBaseRateLargeOre() int64
	GetBaseRateBulkOre() int64
	GetMinimumBaseOre() int64
	GetFreeDistanceKm() float64
	GetRegionalKmOre() int64
	GetLongHaulKmOre() int64
	GetLongHaulFromKm() float64
	GetTruckCapacityM3() float64
	GetFloorStairsOrePerM3() int64
	GetFloorSmallLiftOrePerM3() int64
	GetCarryOrePerM3Meter() int64
	GetCarryMaxExtraMeters() float64
	GetPackingOrePerM2() int64
	GetCleaningOrePerM2() int64
	GetExtraVolumeOrePerM3() int64
}

// RUTConfig provides the statutory deduction parameters. The rate and cap are
// business configuration, not law baked into code.
type RUTConfig interface {
	GetRUTRateBps() int
	GetRUTAnnualCapOre() int64
}

// QuotePolicyConfig provides quote lifecycle policy settings.
type QuotePolicyConfig interface {
	GetQuoteValidity() time.Duration
	GetMaterialityThresholdBps() int64
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	EmailEnabled     bool
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string

	GeocodeURL              string
	RoutingURL              string
	DistanceCacheTTL        time.Duration
	DistanceResolveAttempts int

	BaseRateSmallOre       int64
	BaseRateMidOre         int64
	BaseRateLargeOre       int64
	BaseRateBulkOre        int64
	MinimumBaseOre         int64
	FreeDistanceKm         float64
	RegionalKmOre          int64
	LongHaulKmOre          int64
	LongHaulFromKm         float64
	TruckCapacityM3        float64
	FloorStairsOrePerM3    int64
	FloorSmallLiftOrePerM3 int64
	CarryOrePerM3Meter     int64
	CarryMaxExtraMeters    float64
	PackingOrePerM2        int64
	CleaningOrePerM2       int64
	ExtraVolumeOrePerM3    int64

	RUTRateBps      int
	RUTAnnualCapOre int64

	QuoteValidity           time.Duration
	MaterialityThresholdBps int64
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// GeoConfig implementation
func (c *Config) GetGeocodeURL() string              { return c.GeocodeURL }
func (c *Config) GetRoutingURL() string              { return c.RoutingURL }
func (c *Config) GetDistanceCacheTTL() time.Duration { return c.DistanceCacheTTL }
func (c *Config) GetDistanceResolveAttempts() int    { return c.DistanceResolveAttempts }

// PricingConfig implementation
func (c *Config) GetBaseRateSmallOre() int64       { return c.BaseRateSmallOre }
func (c *Config) GetBaseRateMidOre() int64         { return c.BaseRateMidOre }
func (c *Config) GetBaseRateLargeOre() int64       { return c.BaseRateLargeOre }
func (c *Config) GetBaseRateBulkOre() int64        { return c.BaseRateBulkOre }
func (c *Config) GetMinimumBaseOre() int64         { return c.MinimumBaseOre }
func (c *Config) GetFreeDistanceKm() float64       { return c.FreeDistanceKm }
func (c *Config) GetRegionalKmOre() int64          { return c.RegionalKmOre }
func (c *Config) GetLongHaulKmOre() int64          { return c.LongHaulKmOre }
func (c *Config) GetLongHaulFromKm() float64       { return c.LongHaulFromKm }
func (c *Config) GetTruckCapacityM3() float64      { return c.TruckCapacityM3 }
func (c *Config) GetFloorStairsOrePerM3() int64    { return c.FloorStairsOrePerM3 }
func (c *Config) GetFloorSmallLiftOrePerM3() int64 { return c.FloorSmallLiftOrePerM3 }
func (c *Config) GetCarryOrePerM3Meter() int64     { return c.CarryOrePerM3Meter }
func (c *Config) GetCarryMaxExtraMeters() float64  { return c.CarryMaxExtraMeters }
func (c *Config) GetPackingOrePerM2() int64        { return c.PackingOrePerM2 }
func (c *Config) GetCleaningOrePerM2() int64       { return c.CleaningOrePerM2 }
func (c *Config) GetExtraVolumeOrePerM3() int64    { return c.ExtraVolumeOrePerM3 }

// RUTConfig implementation
func (c *Config) GetRUTRateBps() int        { return c.RUTRateBps }
func (c *Config) GetRUTAnnualCapOre() int64 { return c.RUTAnnualCapOre }

// QuotePolicyConfig implementation
func (c *Config) GetQuoteValidity() time.Duration   { return c.QuoteValidity }
func (c *Config) GetMaterialityThresholdBps() int64 { return c.MaterialityThresholdBps }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		EmailEnabled:     emailEnabled && smtpHost != "",
		SMTPHost:         smtpHost,
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Nordflytt"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),

		GeocodeURL:              getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org/search"),
		RoutingURL:              getEnv("ROUTING_URL", "https://router.project-osrm.org"),
		DistanceCacheTTL:        mustDuration(getEnv("DISTANCE_CACHE_TTL", "24h")),
		DistanceResolveAttempts: mustInt(getEnv("DISTANCE_RESOLVE_ATTEMPTS", "3")),

		BaseRateSmallOre:       mustInt64(getEnv("PRICE_BASE_RATE_SMALL_ORE", "32000")),
		BaseRateMidOre:         mustInt64(getEnv("PRICE_BASE_RATE_MID_ORE", "20000")),
		BaseRateLargeOre:       mustInt64(getEnv("PRICE_BASE_RATE_LARGE_ORE", "14400")),
		BaseRateBulkOre:        mustInt64(getEnv("PRICE_BASE_RATE_BULK_ORE", "12800")),
		MinimumBaseOre:         mustInt64(getEnv("PRICE_MINIMUM_BASE_ORE", "160000")),
		FreeDistanceKm:         mustFloat(getEnv("PRICE_FREE_DISTANCE_KM", "50")),
		RegionalKmOre:          mustInt64(getEnv("PRICE_REGIONAL_KM_ORE", "1040")),
		LongHaulKmOre:          mustInt64(getEnv("PRICE_LONG_HAUL_KM_ORE", "1500")),
		LongHaulFromKm:         mustFloat(getEnv("PRICE_LONG_HAUL_FROM_KM", "400")),
		TruckCapacityM3:        mustFloat(getEnv("PRICE_TRUCK_CAPACITY_M3", "19")),
		FloorStairsOrePerM3:    mustInt64(getEnv("PRICE_FLOOR_STAIRS_ORE_PER_M3", "2000")),
		FloorSmallLiftOrePerM3: mustInt64(getEnv("PRICE_FLOOR_SMALL_LIFT_ORE_PER_M3", "1000")),
		CarryOrePerM3Meter:     mustInt64(getEnv("PRICE_CARRY_ORE_PER_M3_METER", "400")),
		CarryMaxExtraMeters:    mustFloat(getEnv("PRICE_CARRY_MAX_EXTRA_METERS", "100")),
		PackingOrePerM2:        mustInt64(getEnv("PRICE_PACKING_ORE_PER_M2", "4400")),
		CleaningOrePerM2:       mustInt64(getEnv("PRICE_CLEANING_ORE_PER_M2", "4400")),
		ExtraVolumeOrePerM3:    mustInt64(getEnv("PRICE_EXTRA_VOLUME_ORE_PER_M3", "24000")),

		RUTRateBps:      mustInt(getEnv("RUT_RATE_BPS", "5000")),
		RUTAnnualCapOre: mustInt64(getEnv("RUT_ANNUAL_CAP_ORE", "7500000")),

		QuoteValidity:           mustDuration(getEnv("QUOTE_VALIDITY", "720h")),
		MaterialityThresholdBps: mustInt64(getEnv("MATERIALITY_THRESHOLD_BPS", "200")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if emailEnabled && cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.RUTRateBps < 0 || cfg.RUTRateBps > 10000 {
		return nil, fmt.Errorf("RUT_RATE_BPS must be between 0 and 10000")
	}
	if cfg.MaterialityThresholdBps < 0 {
		return nil, fmt.Errorf("MATERIALITY_THRESHOLD_BPS must not be negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
