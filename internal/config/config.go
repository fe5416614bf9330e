// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/aretelabs/custodian/internal/domain"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Governance thresholds. All externally configurable per deployment;
	// defaults follow the documented policy values.
	MinConfidence     float64 // Kill switch fires below this (default 0.5)
	VolatilityCeiling float64 // Kill switch fires above this percentage (default 50)
	EvalConfidence    float64 // Opportunity approval floor (default 0.6)
	RiskCutoff        float64 // Hard cutoff for the transaction risk score (default 0.8)

	// Spend ceilings
	DailyCeiling   decimal.Decimal
	CategoryLimits map[domain.SpendCategory]decimal.Decimal

	// SettlementRateLimit caps outbound settlement calls per second
	SettlementRateLimit float64

	// SpendSpikeMultiple flags a budget anomaly when a sweep's aggregate
	// spend exceeds this multiple of the previous sweep (0 disables)
	SpendSpikeMultiple float64

	// TreasuryBalance seeds the settlement treasury
	TreasuryBalance decimal.Decimal

	// ApprovalKey signs approval records in the audit trail
	ApprovalKey string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CUSTODIAN_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("CUSTODIAN_PORT", 8010),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MinConfidence:       getEnvAsFloat("MIN_CONFIDENCE", 0.5),
		VolatilityCeiling:   getEnvAsFloat("VOLATILITY_CEILING", 50.0),
		EvalConfidence:      getEnvAsFloat("EVAL_CONFIDENCE_FLOOR", 0.6),
		RiskCutoff:          getEnvAsFloat("RISK_CUTOFF", 0.8),
		DailyCeiling:        getEnvAsDecimal("DAILY_SPEND_CEILING", "1000"),
		SettlementRateLimit: getEnvAsFloat("SETTLEMENT_RATE_LIMIT", 2.0),
		SpendSpikeMultiple:  getEnvAsFloat("SPEND_SPIKE_MULTIPLE", 3.0),
		TreasuryBalance:     getEnvAsDecimal("TREASURY_BALANCE", "1000000"),
		ApprovalKey:         getEnv("APPROVAL_SIGNING_KEY", "custodian-dev-key"),
		CategoryLimits: map[domain.SpendCategory]decimal.Decimal{
			domain.CategoryCompute:   getEnvAsDecimal("CATEGORY_LIMIT_COMPUTE", "500"),
			domain.CategoryStorage:   getEnvAsDecimal("CATEGORY_LIMIT_STORAGE", "200"),
			domain.CategoryAPICalls:  getEnvAsDecimal("CATEGORY_LIMIT_API_CALLS", "300"),
			domain.CategoryMarketing: getEnvAsDecimal("CATEGORY_LIMIT_MARKETING", "400"),
			domain.CategoryResearch:  getEnvAsDecimal("CATEGORY_LIMIT_RESEARCH", "250"),
			domain.CategoryOther:     getEnvAsDecimal("CATEGORY_LIMIT_OTHER", "100"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("MIN_CONFIDENCE must be in [0,1], got %v", c.MinConfidence)
	}
	if c.EvalConfidence < c.MinConfidence {
		return fmt.Errorf("EVAL_CONFIDENCE_FLOOR (%v) must not be below MIN_CONFIDENCE (%v)",
			c.EvalConfidence, c.MinConfidence)
	}
	if !c.DailyCeiling.IsPositive() {
		return fmt.Errorf("DAILY_SPEND_CEILING must be positive, got %s", c.DailyCeiling)
	}
	for cat, limit := range c.CategoryLimits {
		if limit.IsNegative() {
			return fmt.Errorf("category limit for %s must not be negative, got %s", cat, limit)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}
