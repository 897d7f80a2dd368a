// Package config loads and validates the core's runtime configuration,
// merging a config file with environment overrides via viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// RouterConfig configures the exchange-bridge TCP connector.
type RouterConfig struct {
	Host               string
	ESPort             int
	NQPort             int
	TimeoutMs          int
	HeartbeatIntervalS int
}

// RiskConfig configures the RiskGate.
type RiskConfig struct {
	DailyLossLimit         decimal.Decimal
	MaxDailyTrades         int
	BasePositionSize       int
	MaxPositionSize        int
	MaxPositionsConcurrent int
	MaxRiskPerTradeCcy     decimal.Decimal
	NoTradeBefore          string // "HH:MM" UTC
	NoTradeAfter           string // "HH:MM" UTC
}

// VixThresholds configures the VIX-regime breakpoints (default 15/25).
type VixThresholds struct {
	Low, High decimal.Decimal
}

// Config is the single immutable configuration value built at startup.
type Config struct {
	DataDir                 string
	UnifiedPattern          string
	BackfillMB              int
	AnalysisInterval        time.Duration
	MaxSignalsPerDay        int
	PatternFireCooldown     time.Duration
	MinPatternConfidence    float64
	MinConfluenceExecution  float64
	BattleNavaleWeight      float64
	MenthorQWeight          float64
	VixThresholds           VixThresholds
	Risk                    RiskConfig
	Router                  RouterConfig

	// Symbols is the fixed set of contracts the core runs a selector-tick
	// and heartbeat goroutine for, e.g. ["ES_FUT_CME", "NQ_FUT_CME"].
	Symbols []string

	HTTPAddr string
	LogLevel string
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		DataDir:                "./data",
		UnifiedPattern:         "mia_unified_*.jsonl",
		BackfillMB:             20,
		AnalysisInterval:       500 * time.Millisecond,
		MaxSignalsPerDay:       12,
		PatternFireCooldown:    60 * time.Second,
		MinPatternConfidence:   0.65,
		MinConfluenceExecution: 0.70,
		BattleNavaleWeight:     0.6,
		MenthorQWeight:         0.4,
		VixThresholds: VixThresholds{
			Low:  decimal.NewFromInt(15),
			High: decimal.NewFromInt(25),
		},
		Risk: RiskConfig{
			DailyLossLimit:         decimal.NewFromInt(2000),
			MaxDailyTrades:         12,
			BasePositionSize:       1,
			MaxPositionSize:        3,
			MaxPositionsConcurrent: 2,
			MaxRiskPerTradeCcy:     decimal.NewFromInt(500),
			NoTradeBefore:          "00:00",
			NoTradeAfter:           "23:59",
		},
		Symbols: []string{"ES_FUT_CME", "NQ_FUT_CME"},
		Router: RouterConfig{
			Host:               "127.0.0.1",
			ESPort:             11099,
			NQPort:             11100,
			TimeoutMs:          5000,
			HeartbeatIntervalS: 30,
		},
		HTTPAddr: "localhost:8080",
		LogLevel: "info",
	}
}

// Load merges the documented config keys from an optional file (any
// format viper supports: yaml/toml/json) with MIA_-prefixed environment
// overrides, starting from Default. A missing file is not an error;
// an unreadable-but-present file, or an out-of-range value, is —
// configuration errors are fatal at startup (exit code 1).
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("MIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg.DataDir = v.GetString("data_dir")
	cfg.UnifiedPattern = v.GetString("unified_pattern")
	cfg.BackfillMB = v.GetInt("backfill_mb")
	cfg.AnalysisInterval = time.Duration(v.GetInt("analysis_interval_ms")) * time.Millisecond
	cfg.MaxSignalsPerDay = v.GetInt("max_signals_per_day")
	cfg.PatternFireCooldown = time.Duration(v.GetInt("pattern_fire_cooldown_sec")) * time.Second
	cfg.MinPatternConfidence = v.GetFloat64("min_pattern_confidence")
	cfg.MinConfluenceExecution = v.GetFloat64("min_confluence_execution")
	cfg.BattleNavaleWeight = v.GetFloat64("battle_navale_weight")
	cfg.MenthorQWeight = v.GetFloat64("menthorq_weight")

	cfg.Risk.DailyLossLimit = decimal.NewFromFloat(v.GetFloat64("risk.daily_loss_limit"))
	cfg.Risk.MaxDailyTrades = v.GetInt("risk.max_daily_trades")
	cfg.Risk.BasePositionSize = v.GetInt("risk.base_position_size")
	cfg.Risk.MaxPositionSize = v.GetInt("risk.max_position_size")
	cfg.Risk.MaxPositionsConcurrent = v.GetInt("risk.max_positions_concurrent")
	cfg.Risk.NoTradeBefore = v.GetString("risk.no_trade_before")
	cfg.Risk.NoTradeAfter = v.GetString("risk.no_trade_after")

	cfg.Router.Host = v.GetString("router.host")
	cfg.Router.ESPort = v.GetInt("router.es_port")
	cfg.Router.NQPort = v.GetInt("router.nq_port")
	cfg.Router.TimeoutMs = v.GetInt("router.timeout_ms")
	cfg.Router.HeartbeatIntervalS = v.GetInt("router.heartbeat_interval_sec")

	cfg.HTTPAddr = v.GetString("http_addr")
	cfg.LogLevel = v.GetString("log_level")

	if symbols := v.GetStringSlice("symbols"); len(symbols) > 0 {
		cfg.Symbols = symbols
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("unified_pattern", cfg.UnifiedPattern)
	v.SetDefault("backfill_mb", cfg.BackfillMB)
	v.SetDefault("analysis_interval_ms", int(cfg.AnalysisInterval/time.Millisecond))
	v.SetDefault("max_signals_per_day", cfg.MaxSignalsPerDay)
	v.SetDefault("pattern_fire_cooldown_sec", int(cfg.PatternFireCooldown/time.Second))
	v.SetDefault("min_pattern_confidence", cfg.MinPatternConfidence)
	v.SetDefault("min_confluence_execution", cfg.MinConfluenceExecution)
	v.SetDefault("battle_navale_weight", cfg.BattleNavaleWeight)
	v.SetDefault("menthorq_weight", cfg.MenthorQWeight)
	v.SetDefault("risk.daily_loss_limit", cfg.Risk.DailyLossLimit.InexactFloat64())
	v.SetDefault("risk.max_daily_trades", cfg.Risk.MaxDailyTrades)
	v.SetDefault("risk.base_position_size", cfg.Risk.BasePositionSize)
	v.SetDefault("risk.max_position_size", cfg.Risk.MaxPositionSize)
	v.SetDefault("risk.max_positions_concurrent", cfg.Risk.MaxPositionsConcurrent)
	v.SetDefault("risk.no_trade_before", cfg.Risk.NoTradeBefore)
	v.SetDefault("risk.no_trade_after", cfg.Risk.NoTradeAfter)
	v.SetDefault("router.host", cfg.Router.Host)
	v.SetDefault("router.es_port", cfg.Router.ESPort)
	v.SetDefault("router.nq_port", cfg.Router.NQPort)
	v.SetDefault("router.timeout_ms", cfg.Router.TimeoutMs)
	v.SetDefault("router.heartbeat_interval_sec", cfg.Router.HeartbeatIntervalS)
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("symbols", cfg.Symbols)
}

// Validate rejects configurations outside the documented domain; any
// failure here is a fatal startup error mapped to exit code 1.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.UnifiedPattern == "" {
		return fmt.Errorf("unified_pattern is required")
	}
	if c.BackfillMB <= 0 {
		return fmt.Errorf("backfill_mb must be positive")
	}
	if c.AnalysisInterval <= 0 {
		return fmt.Errorf("analysis_interval_ms must be positive")
	}
	if c.MaxSignalsPerDay <= 0 {
		return fmt.Errorf("max_signals_per_day must be positive")
	}
	sum := c.BattleNavaleWeight + c.MenthorQWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("battle_navale_weight + menthorq_weight must sum to 1, got %f", sum)
	}
	if c.Router.ESPort <= 0 || c.Router.NQPort <= 0 {
		return fmt.Errorf("router.es_port and router.nq_port must be positive")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must list at least one contract")
	}
	return nil
}
