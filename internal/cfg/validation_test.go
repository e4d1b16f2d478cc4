package cfg

import (
	"testing"
	"time"
)

func createValidSettings() *Settings {
	return &Settings{
		APIKey:               "valid_key",
		APISecret:            "valid_secret",
		Symbols:              []string{"BTCUSDT", "ETHUSDT"},
		BaseURL:              "https://api.exchange.example/futures",
		WsURL:                "wss://stream.exchange.example/public",
		PaperTrading:         true,
		MaxTotalAllocation:   1.0,
		KellyFraction:        0.25,
		DailyLossLimit:       0.05,
		WeeklyLossLimit:      0.10,
		MaxDrawdown:          0.20,
		PingInterval:         15 * time.Second,
		RESTTimeout:          10 * time.Second,
		MetricsPort:          9090,
		ControlPort:          8080,
		TradingCycleInterval: 300 * time.Second,
		SymbolConfigs:        make(map[string]SymbolConfig),
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	if err := validateSettings(createValidSettings()); err != nil {
		t.Errorf("expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_MissingCredentials(t *testing.T) {
	s := createValidSettings()
	s.APIKey = ""
	if err := validateSettings(s); err == nil {
		t.Error("expected error for missing API key")
	}

	s = createValidSettings()
	s.APISecret = ""
	if err := validateSettings(s); err == nil {
		t.Error("expected error for missing secret")
	}
}

func TestValidateSettings_EmptySymbols(t *testing.T) {
	s := createValidSettings()
	s.Symbols = nil
	if err := validateSettings(s); err == nil {
		t.Error("expected error for empty symbols")
	}
}

func TestValidateSettings_EmptyURLs(t *testing.T) {
	s := createValidSettings()
	s.BaseURL = ""
	if err := validateSettings(s); err == nil {
		t.Error("expected error for empty base URL")
	}

	s = createValidSettings()
	s.WsURL = ""
	if err := validateSettings(s); err == nil {
		t.Error("expected error for empty ws URL")
	}
}

func TestValidateSettings_LiveTradingRequiresForceFlag(t *testing.T) {
	s := createValidSettings()
	s.PaperTrading = false
	t.Setenv("FORCE_LIVE_TRADING", "")
	if err := validateSettings(s); err == nil {
		t.Error("expected error requiring FORCE_LIVE_TRADING for live trading")
	}

	t.Setenv("FORCE_LIVE_TRADING", "true")
	if err := validateSettings(s); err != nil {
		t.Errorf("expected no error once FORCE_LIVE_TRADING is set, got: %v", err)
	}
}

func TestValidateSettings_InvalidPingInterval(t *testing.T) {
	cases := []struct {
		name    string
		ping    time.Duration
		wantErr bool
	}{
		{"too short", 500 * time.Millisecond, true},
		{"minimum valid", 1 * time.Second, false},
		{"normal", 15 * time.Second, false},
		{"maximum valid", 5 * time.Minute, false},
		{"too long", 10 * time.Minute, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := createValidSettings()
			s.PingInterval = tc.ping
			err := validateSettings(s)
			if tc.wantErr && err == nil {
				t.Error("expected error for invalid ping interval")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidMetricsPort(t *testing.T) {
	cases := []struct {
		name    string
		port    int
		wantErr bool
	}{
		{"too low", 1023, true},
		{"minimum valid", 1024, false},
		{"normal", 9090, false},
		{"maximum valid", 65535, false},
		{"too high", 65536, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := createValidSettings()
			s.MetricsPort = tc.port
			err := validateSettings(s)
			if tc.wantErr && err == nil {
				t.Error("expected error for invalid metrics port")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_InvalidKellyFraction(t *testing.T) {
	cases := []struct {
		name    string
		val     float64
		wantErr bool
	}{
		{"zero", 0, true},
		{"negative", -0.1, true},
		{"normal", 0.25, false},
		{"at cap", 0.25, false},
		{"over cap", 0.5, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := createValidSettings()
			s.KellyFraction = tc.val
			err := validateSettings(s)
			if tc.wantErr && err == nil {
				t.Error("expected error for invalid kelly fraction")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestValidateSettings_PortfolioWeightsMustSumToOne(t *testing.T) {
	s := createValidSettings()
	s.SymbolConfigs = map[string]SymbolConfig{
		"BTCUSDT": {PortfolioWeight: 0.3},
		"ETHUSDT": {PortfolioWeight: 0.3},
	}
	if err := validateSettings(s); err == nil {
		t.Error("expected error when portfolio weights don't sum to 1.0")
	}

	s.SymbolConfigs = map[string]SymbolConfig{
		"BTCUSDT": {PortfolioWeight: 0.6},
		"ETHUSDT": {PortfolioWeight: 0.4},
	}
	if err := validateSettings(s); err != nil {
		t.Errorf("expected weights summing to 1.0 to pass, got: %v", err)
	}
}

func TestValidateSettings_SymbolLeverageRange(t *testing.T) {
	s := createValidSettings()
	s.SymbolConfigs = map[string]SymbolConfig{
		"BTCUSDT": {Leverage: 150},
	}
	if err := validateSettings(s); err == nil {
		t.Error("expected error for leverage above 100")
	}

	s.SymbolConfigs["BTCUSDT"] = SymbolConfig{Leverage: 10}
	if err := validateSettings(s); err != nil {
		t.Errorf("expected valid leverage to pass, got: %v", err)
	}
}
