// Package cfg provides configuration management for the trading engine.
// It supports loading configuration from both YAML files and environment
// variables, with environment variables taking precedence over YAML
// settings, and decrypts `enc:`-prefixed secrets with a master key.
//
// The package validates all configuration parameters and applies
// sensible defaults for optional settings. It enforces an explicit
// FORCE_LIVE_TRADING opt-in before leaving paper-trading mode.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tradingengine/internal/common"
	"tradingengine/internal/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SymbolConfig is the per-symbol override block read from the YAML
// `symbolConfig` map, keyed by symbol name. Per-symbol environment keys
// are not read: a config loaded from the environment alone carries no
// per-symbol overrides.
type SymbolConfig struct {
	Leverage           int     `yaml:"leverage"`
	PortfolioWeight    float64 `yaml:"portfolioWeight"`
	PositionSizeMin    float64 `yaml:"positionSizeMin"`
	PositionSizeStd    float64 `yaml:"positionSizeStd"`
	PositionSizeMax    float64 `yaml:"positionSizeMax"`
	MaxPositions       int     `yaml:"maxPositions"`
}

// Settings contains all configuration parameters for the trading engine.
type Settings struct {
	// Exchange credentials
	APIKey     string
	APISecret  string
	Passphrase string

	// Exchange endpoints
	BaseURL string
	WsURL   string

	// Trading
	Symbols       []string
	SymbolConfigs map[string]SymbolConfig
	PaperTrading  bool

	// Capital / risk
	MaxTotalAllocation float64
	KellyFraction      float64
	DailyLossLimit     float64
	WeeklyLossLimit    float64
	MaxDrawdown        float64
	MakerFee           float64
	TakerFee           float64

	// ML / news feature toggles
	EnableMLModels       bool
	UseGPT4              bool
	EnableCostOptimize   bool
	MLWeight             float64
	NewsWeight           float64
	MinNewsConfidence    float64
	MLModelPath          string
	MLRetrainInterval    time.Duration

	// Network tuning
	RESTTimeout        time.Duration
	NetworkRetryWait   time.Duration
	PingInterval       time.Duration
	WsResponseTimeout  time.Duration
	WsMaxReconnectWait time.Duration
	WsMaxAttempts      int

	// System
	TradingCycleInterval time.Duration
	DataPath             string
	MetricsPort          int
	ControlPort          int
	ControlToken         string
	MasterKey            string

	// Notifier
	TelegramToken  string
	TelegramChatID string
}

// ConfigFile is the YAML configuration file shape.
type ConfigFile struct {
	API struct {
		Key        string `yaml:"key"`
		Secret     string `yaml:"secret"`
		Passphrase string `yaml:"passphrase"`
		BaseURL    string `yaml:"baseURL"`
		WsURL      string `yaml:"wsURL"`
	} `yaml:"api"`

	Trading struct {
		Symbols      []string `yaml:"symbols"`
		PaperTrading bool     `yaml:"paperTrading"`
	} `yaml:"trading"`

	SymbolConfig map[string]SymbolConfig `yaml:"symbolConfig"`

	Capital struct {
		MaxTotalAllocation float64 `yaml:"maxTotalAllocation"`
		KellyFraction      float64 `yaml:"kellyFraction"`
		DailyLossLimit     float64 `yaml:"dailyLossLimit"`
		WeeklyLossLimit    float64 `yaml:"weeklyLossLimit"`
		MaxDrawdown        float64 `yaml:"maxDrawdown"`
		MakerFee           float64 `yaml:"makerFee"`
		TakerFee           float64 `yaml:"takerFee"`
	} `yaml:"capital"`

	ML struct {
		Enable            bool    `yaml:"enable"`
		UseGPT4           bool    `yaml:"useGPT4"`
		CostOptimize      bool    `yaml:"costOptimize"`
		MLWeight          float64 `yaml:"mlWeight"`
		NewsWeight        float64 `yaml:"newsWeight"`
		MinNewsConfidence float64 `yaml:"minNewsConfidence"`
		ModelPath         string  `yaml:"modelPath"`
		RetrainHours      int     `yaml:"retrainHours"`
	} `yaml:"ml"`

	System struct {
		DataPath             string `yaml:"dataPath"`
		MetricsPort          int    `yaml:"metricsPort"`
		ControlPort          int    `yaml:"controlPort"`
		RESTTimeout          string `yaml:"restTimeout"`
		NetworkRetryWait     string `yaml:"networkRetryWait"`
		PingInterval         string `yaml:"pingInterval"`
		WsResponseTimeout    string `yaml:"wsResponseTimeout"`
		WsMaxReconnectWait   string `yaml:"wsMaxReconnectWait"`
		WsMaxAttempts        int    `yaml:"wsMaxAttempts"`
		TradingCycleInterval string `yaml:"tradingCycleInterval"`
	} `yaml:"system"`

	Notifier struct {
		TelegramToken  string `yaml:"telegramToken"`
		TelegramChatID string `yaml:"telegramChatID"`
	} `yaml:"notifier"`
}

// Load loads configuration from either a YAML file or environment
// variables, decrypts any `enc:`-prefixed secrets, and validates the
// result. It first checks CONFIG_FILE for a YAML path, otherwise reads
// entirely from the environment.
func Load() (Settings, error) {
	_ = godotenv.Load()

	var (
		settings Settings
		err      error
	)
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		settings, err = loadFromYAML(path)
	} else {
		settings, err = loadFromEnv()
	}
	if err != nil {
		return Settings{}, err
	}

	if err := decryptSecrets(&settings); err != nil {
		return Settings{}, fmt.Errorf("decrypting secrets: %w", err)
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	s := Settings{
		APIKey:     getEnvOrDefault(common.EnvExchangeAPIKey, cf.API.Key),
		APISecret:  getEnvOrDefault(common.EnvExchangeSecret, cf.API.Secret),
		Passphrase: getEnvOrDefault(common.EnvExchangePassword, cf.API.Passphrase),
		BaseURL:    getEnvOrDefault(common.EnvBaseURL, orDefault(cf.API.BaseURL, common.DefaultBaseURL)),
		WsURL:      getEnvOrDefault(common.EnvWsURL, orDefault(cf.API.WsURL, common.DefaultWsURL)),

		Symbols:       getSymbolsFromEnvOrConfig(cf.Trading.Symbols),
		SymbolConfigs: mergeSymbolConfigs(cf.SymbolConfig),
		PaperTrading:  getBoolFromEnvOrConfig(common.EnvPaperTrading, cf.Trading.PaperTrading),

		MaxTotalAllocation: getFloatFromEnvOrConfigWithDefault(common.EnvMaxTotalAllocation, cf.Capital.MaxTotalAllocation, common.DefaultMaxTotalAllocation),
		KellyFraction:      getFloatFromEnvOrConfigWithDefault(common.EnvKellyFraction, cf.Capital.KellyFraction, common.DefaultKellyFraction),
		DailyLossLimit:     getFloatFromEnvOrConfigWithDefault(common.EnvDailyLossLimit, cf.Capital.DailyLossLimit, common.DefaultDailyLossLimit),
		WeeklyLossLimit:    getFloatFromEnvOrConfigWithDefault(common.EnvWeeklyLossLimit, cf.Capital.WeeklyLossLimit, common.DefaultWeeklyLossLimit),
		MaxDrawdown:        getFloatFromEnvOrConfigWithDefault(common.EnvMaxDrawdown, cf.Capital.MaxDrawdown, common.DefaultMaxDrawdown),
		MakerFee:           getFloatFromEnvOrConfigWithDefault(common.EnvMakerFee, cf.Capital.MakerFee, common.DefaultMakerFee),
		TakerFee:           getFloatFromEnvOrConfigWithDefault(common.EnvTakerFee, cf.Capital.TakerFee, common.DefaultTakerFee),

		EnableMLModels:     getBoolFromEnvOrConfig(common.EnvEnableMLModels, cf.ML.Enable),
		UseGPT4:            getBoolFromEnvOrConfig(common.EnvUseGPT4, cf.ML.UseGPT4),
		EnableCostOptimize: getBoolFromEnvOrConfig(common.EnvEnableCostOptimize, cf.ML.CostOptimize),
		MLWeight:           getFloatFromEnvOrConfigWithDefault(common.EnvMLWeight, cf.ML.MLWeight, common.DefaultMLWeight),
		NewsWeight:         getFloatFromEnvOrConfigWithDefault(common.EnvNewsWeight, cf.ML.NewsWeight, common.DefaultNewsWeight),
		MinNewsConfidence:  getFloatFromEnvOrConfigWithDefault(common.EnvMinNewsConfidence, cf.ML.MinNewsConfidence, common.DefaultMinNewsConfidence),
		MLModelPath:        getEnvOrDefault(common.EnvMLModelPath, orDefault(cf.ML.ModelPath, common.DefaultMLModelPath)),
		MLRetrainInterval:  time.Duration(getIntFromEnvOrConfig(common.EnvMLRetrainHours, cf.ML.RetrainHours, common.DefaultMLRetrainHours)) * time.Hour,

		RESTTimeout:        parseDurationOr(getEnvOrDefault(common.EnvRESTTimeout, cf.System.RESTTimeout), common.DefaultRESTTimeout*time.Second),
		NetworkRetryWait:   parseDurationOr(getEnvOrDefault(common.EnvNetworkRetryWait, cf.System.NetworkRetryWait), common.DefaultNetworkRetryWait*time.Second),
		PingInterval:       parseDurationOr(getEnvOrDefault(common.EnvPingInterval, cf.System.PingInterval), common.DefaultPingInterval*time.Second),
		WsResponseTimeout:  parseDurationOr(getEnvOrDefault(common.EnvWsResponseTimeout, cf.System.WsResponseTimeout), common.DefaultWsResponseTimeout*time.Second),
		WsMaxReconnectWait: parseDurationOr(getEnvOrDefault(common.EnvWsMaxReconnect, cf.System.WsMaxReconnectWait), common.DefaultWsMaxReconnectDelay*time.Second),
		WsMaxAttempts:      getIntFromEnvOrConfig(common.EnvWsMaxAttempts, cf.System.WsMaxAttempts, common.DefaultWsMaxAttempts),

		TradingCycleInterval: parseDurationOr(getEnvOrDefault(common.EnvTradingCycle, cf.System.TradingCycleInterval), common.DefaultTradingCycleInterval*time.Second),
		DataPath:             getEnvOrDefault(common.EnvDataPath, cf.System.DataPath),
		MetricsPort:          getIntFromEnvOrConfig(common.EnvMetricsPort, cf.System.MetricsPort, common.DefaultMetricsPort),
		ControlPort:          getIntFromEnvOrConfig(common.EnvControlPort, cf.System.ControlPort, common.DefaultControlPort),
		ControlToken:         os.Getenv(common.EnvControlToken),
		MasterKey:            os.Getenv(common.EnvMasterKey),

		TelegramToken:  getEnvOrDefault(common.EnvTelegramToken, cf.Notifier.TelegramToken),
		TelegramChatID: getEnvOrDefault(common.EnvTelegramChatID, cf.Notifier.TelegramChatID),
	}

	return s, nil
}

func loadFromEnv() (Settings, error) {
	apiKey, err := getEnvRequired(common.EnvExchangeAPIKey)
	if err != nil {
		return Settings{}, err
	}
	secret, err := getEnvRequired(common.EnvExchangeSecret)
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		APIKey:     apiKey,
		APISecret:  secret,
		Passphrase: os.Getenv(common.EnvExchangePassword),
		BaseURL:    getEnvOrDefault(common.EnvBaseURL, common.DefaultBaseURL),
		WsURL:      getEnvOrDefault(common.EnvWsURL, common.DefaultWsURL),

		Symbols:       splitOrDefault(os.Getenv(common.EnvSymbols), nil),
		SymbolConfigs: mergeSymbolConfigs(nil),
		PaperTrading:  getBoolOrDefault(common.EnvPaperTrading, true),

		MaxTotalAllocation: getFloatOrDefault(common.EnvMaxTotalAllocation, common.DefaultMaxTotalAllocation),
		KellyFraction:      getFloatOrDefault(common.EnvKellyFraction, common.DefaultKellyFraction),
		DailyLossLimit:     getFloatOrDefault(common.EnvDailyLossLimit, common.DefaultDailyLossLimit),
		WeeklyLossLimit:    getFloatOrDefault(common.EnvWeeklyLossLimit, common.DefaultWeeklyLossLimit),
		MaxDrawdown:        getFloatOrDefault(common.EnvMaxDrawdown, common.DefaultMaxDrawdown),
		MakerFee:           getFloatOrDefault(common.EnvMakerFee, common.DefaultMakerFee),
		TakerFee:           getFloatOrDefault(common.EnvTakerFee, common.DefaultTakerFee),

		EnableMLModels:     getBoolOrDefault(common.EnvEnableMLModels, false),
		UseGPT4:            getBoolOrDefault(common.EnvUseGPT4, false),
		EnableCostOptimize: getBoolOrDefault(common.EnvEnableCostOptimize, true),
		MLWeight:           getFloatOrDefault(common.EnvMLWeight, common.DefaultMLWeight),
		NewsWeight:         getFloatOrDefault(common.EnvNewsWeight, common.DefaultNewsWeight),
		MinNewsConfidence:  getFloatOrDefault(common.EnvMinNewsConfidence, common.DefaultMinNewsConfidence),
		MLModelPath:        getEnvOrDefault(common.EnvMLModelPath, common.DefaultMLModelPath),
		MLRetrainInterval:  time.Duration(getIntOrDefault(common.EnvMLRetrainHours, common.DefaultMLRetrainHours)) * time.Hour,

		RESTTimeout:        getDurationOrDefault(common.EnvRESTTimeout, common.DefaultRESTTimeout*time.Second),
		NetworkRetryWait:   getDurationOrDefault(common.EnvNetworkRetryWait, common.DefaultNetworkRetryWait*time.Second),
		PingInterval:       getDurationOrDefault(common.EnvPingInterval, common.DefaultPingInterval*time.Second),
		WsResponseTimeout:  getDurationOrDefault(common.EnvWsResponseTimeout, common.DefaultWsResponseTimeout*time.Second),
		WsMaxReconnectWait: getDurationOrDefault(common.EnvWsMaxReconnect, common.DefaultWsMaxReconnectDelay*time.Second),
		WsMaxAttempts:      getIntOrDefault(common.EnvWsMaxAttempts, common.DefaultWsMaxAttempts),

		TradingCycleInterval: getDurationOrDefault(common.EnvTradingCycle, common.DefaultTradingCycleInterval*time.Second),
		DataPath:             os.Getenv(common.EnvDataPath),
		MetricsPort:          getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		ControlPort:          getIntOrDefault(common.EnvControlPort, common.DefaultControlPort),
		ControlToken:         os.Getenv(common.EnvControlToken),
		MasterKey:            os.Getenv(common.EnvMasterKey),

		TelegramToken:  os.Getenv(common.EnvTelegramToken),
		TelegramChatID: os.Getenv(common.EnvTelegramChatID),
	}

	return s, nil
}

// ResolveSymbols builds the immutable model.Symbol set from Settings,
// applying per-symbol overrides and an equal-weight default for symbols
// with no PORTFOLIO_WEIGHT override.
func (s Settings) ResolveSymbols() []model.Symbol {
	out := make([]model.Symbol, 0, len(s.Symbols))
	equalWeight := 1.0
	if n := len(s.Symbols); n > 0 {
		equalWeight = 1.0 / float64(n)
	}
	for _, name := range s.Symbols {
		sc, ok := s.SymbolConfigs[name]
		weight := equalWeight
		leverage := 5
		maxPositions := 1
		band := model.PositionSizeBand{Min: 0.02, Standard: 0.05, Max: 0.10}
		if ok {
			if sc.PortfolioWeight > 0 {
				weight = sc.PortfolioWeight
			}
			if sc.Leverage > 0 {
				leverage = sc.Leverage
			}
			if sc.MaxPositions > 0 {
				maxPositions = sc.MaxPositions
			}
			if sc.PositionSizeMin > 0 || sc.PositionSizeStd > 0 || sc.PositionSizeMax > 0 {
				band = model.PositionSizeBand{Min: sc.PositionSizeMin, Standard: sc.PositionSizeStd, Max: sc.PositionSizeMax}
			}
		}
		out = append(out, model.Symbol{
			Name:             name,
			MaxLeverage:      100,
			Leverage:         leverage,
			PortfolioWeight:  weight,
			SizeBand:         band,
			MaxConcurrentPos: maxPositions,
		})
	}
	return out
}

func mergeSymbolConfigs(fromYAML map[string]SymbolConfig) map[string]SymbolConfig {
	out := make(map[string]SymbolConfig, len(fromYAML))
	for k, v := range fromYAML {
		out[k] = v
	}
	return out
}

func getEnvRequired(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is missing", key)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseDurationOr(v string, defaultValue time.Duration) time.Duration {
	if v == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	return strings.Split(v, ",")
}

func getSymbolsFromEnvOrConfig(configSymbols []string) []string {
	if env := os.Getenv(common.EnvSymbols); env != "" {
		return strings.Split(env, ",")
	}
	return configSymbols
}

func getIntFromEnvOrConfig(key string, configValue int, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if v, err := strconv.Atoi(env); err == nil {
			return v
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if v, err := strconv.ParseFloat(env, 64); err == nil {
			return v
		}
	}
	return configValue
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if v, err := strconv.ParseBool(env); err == nil {
			return v
		}
	}
	return configValue
}

func getFloatFromEnvOrConfigWithDefault(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if v, err := strconv.ParseFloat(env, 64); err == nil {
			return v
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}
