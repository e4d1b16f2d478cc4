// Package common holds environment variable keys, defaults, and shared
// constants used across the trading engine's configuration and
// validation layers.
package common

// Environment variable keys
const (
	EnvExchangeAPIKey    = "EXCHANGE_API_KEY"
	EnvExchangeSecret    = "EXCHANGE_API_SECRET"
	EnvExchangePassword  = "EXCHANGE_API_PASSPHRASE"
	EnvForceLiveTrading  = "FORCE_LIVE_TRADING"
	EnvSymbols           = "SYMBOLS"
	EnvBaseURL           = "BASE_URL"
	EnvWsURL             = "WS_URL"
	EnvDataPath          = "DATABASE_PATH"
	EnvPaperTrading      = "PAPER_TRADING"
	EnvMasterKey         = "MASTER_KEY"
	EnvMetricsPort       = "METRICS_PORT"
	EnvControlPort       = "CONTROL_PORT"
	EnvControlToken      = "CONTROL_TOKEN"
	EnvRESTTimeout       = "HTTP_TIMEOUT"
	EnvNetworkRetryWait  = "NETWORK_RETRY_WAIT"
	EnvPingInterval      = "WS_PING_INTERVAL"
	EnvWsResponseTimeout = "WS_RESPONSE_TIMEOUT"
	EnvWsMaxReconnect    = "WS_MAX_RECONNECT_DELAY"
	EnvWsMaxAttempts     = "WS_MAX_ATTEMPTS"
	EnvTradingCycle      = "TRADING_CYCLE_INTERVAL"

	EnvMaxTotalAllocation = "MAX_TOTAL_ALLOCATION"
	EnvKellyFraction      = "KELLY_FRACTION"
	EnvDailyLossLimit     = "DAILY_LOSS_LIMIT"
	EnvWeeklyLossLimit    = "WEEKLY_LOSS_LIMIT"
	EnvMaxDrawdown        = "MAX_DRAWDOWN"
	EnvMakerFee           = "MAKER_FEE"
	EnvTakerFee           = "TAKER_FEE"

	EnvEnableMLModels        = "ENABLE_ML_MODELS"
	EnvUseGPT4               = "USE_GPT_4"
	EnvEnableCostOptimize    = "ENABLE_COST_OPTIMIZATION"
	EnvMLWeight              = "ML_WEIGHT"
	EnvNewsWeight            = "NEWS_WEIGHT"
	EnvMinNewsConfidence     = "MIN_NEWS_CONFIDENCE"
	EnvMLModelPath           = "MODEL_PATH"
	EnvMLRetrainHours        = "ML_RETRAIN_HOURS"

	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

// Symbol-scoped environment key prefixes; the actual key is
// PREFIX + "_" + symbol, e.g. LEVERAGE_BTCUSDT.
const (
	EnvPrefixLeverage          = "LEVERAGE"
	EnvPrefixPortfolioWeight   = "PORTFOLIO_WEIGHT"
	EnvPrefixPositionSizeMin   = "POSITION_SIZE_MIN"
	EnvPrefixPositionSizeStd   = "POSITION_SIZE_STD"
	EnvPrefixPositionSizeMax   = "POSITION_SIZE_MAX"
	EnvPrefixMaxPositions      = "MAX_POSITIONS"
)

// Configuration defaults
const (
	DefaultBaseURL              = "https://api.exchange.example/futures"
	DefaultWsURL                = "wss://stream.exchange.example/public"
	DefaultSecretPrefix         = "enc:"
	DefaultMetricsPort          = 9090
	DefaultControlPort          = 8080
	DefaultRESTTimeout          = 30 // seconds
	DefaultNetworkRetryWait     = 2  // seconds
	DefaultPingInterval         = 15 // seconds
	DefaultWsResponseTimeout    = 90 // seconds
	DefaultWsMaxReconnectDelay  = 60 // seconds
	DefaultWsMaxAttempts        = 10
	DefaultTradingCycleInterval = 300 // seconds

	DefaultMaxTotalAllocation = 1.0
	DefaultKellyFraction      = 0.25
	DefaultDailyLossLimit     = 0.05
	DefaultWeeklyLossLimit    = 0.10
	DefaultMaxDrawdown        = 0.20
	DefaultMakerFee           = 0.0002
	DefaultTakerFee           = 0.0005

	DefaultMLWeight          = 0.30
	DefaultNewsWeight        = 0.20
	DefaultMinNewsConfidence = 0.6
	DefaultMLModelPath       = "models"
	DefaultMLRetrainHours    = 24

	DefaultMinNotional = 5.0 // USD
)

// Common error messages
const (
	ErrMsgCredentialsRequired      = "exchange api key and secret are required"
	ErrMsgBaseURLRequired          = "baseURL is required"
	ErrMsgWsURLRequired            = "wsURL is required"
	ErrMsgSymbolRequired           = "at least one trading symbol is required"
	ErrMsgForceLiveTradingRequired = "live trading requires FORCE_LIVE_TRADING=true environment variable"
	ErrMsgPortfolioWeightsSum      = "portfolio weights must sum to 1.0 +/- 0.01"
	ErrMsgMissingSizeRange         = "symbol is missing a POSITION_SIZE_RANGE entry"
)

// Validation constants
const (
	MinMetricsPort = 1024
	MaxMetricsPort = 65535

	PortfolioWeightTolerance = 0.01

	// Risk/regime thresholds from 
	MisalignmentConfidencePenalty = 0.7
	DivergenceConfidencePenalty   = 0.8
	DivergenceThreshold           = 0.3

	EmergencySeverityThreshold = 1.2
	EmergencySourceWeightFloor = 0.7

	NewsItemMaxAge         = 24 // hours
	NewsTitleMinLen        = 10
	NewsSuspiciousKeywords = 2
	NewsSpecialCharRatio   = 0.1
	NewsCooldownMinutes    = 30
	NewsTitlePrefixLen     = 50
	NewsMaxPerSource       = 10

	KellyMaxFraction = 0.25
	MaxLossPerPosition = 0.8

	MinCandleRows = 200
	MaxCandleHistory = 1000

	TickStalenessSeconds = 10
	BookStalenessSeconds = 5

	CircuitBreakerFailureThreshold = 5
	CircuitBreakerWindowSeconds    = 60

	CapitalWarningPct  = 0.25
	CapitalDangerPct   = 0.30
	CapitalCriticalPct = 0.32
)
