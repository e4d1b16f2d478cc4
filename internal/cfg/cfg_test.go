package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name: "valid config with required fields",
			envVars: map[string]string{
				"EXCHANGE_API_KEY":    "test_key",
				"EXCHANGE_API_SECRET": "test_secret",
				"SYMBOLS":             "BTCUSDT",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.APIKey != "test_key" {
					t.Errorf("expected APIKey to be 'test_key', got %s", settings.APIKey)
				}
				if settings.APISecret != "test_secret" {
					t.Errorf("expected APISecret to be 'test_secret', got %s", settings.APISecret)
				}
				if !settings.PaperTrading {
					t.Error("expected PaperTrading to default true")
				}
				if settings.MaxTotalAllocation != 1.0 {
					t.Errorf("expected default MaxTotalAllocation 1.0, got %f", settings.MaxTotalAllocation)
				}
				if settings.KellyFraction != 0.25 {
					t.Errorf("expected default KellyFraction 0.25, got %f", settings.KellyFraction)
				}
			},
		},
		{
			name: "custom symbols and risk settings",
			envVars: map[string]string{
				"EXCHANGE_API_KEY":    "test_key",
				"EXCHANGE_API_SECRET": "test_secret",
				"SYMBOLS":             "BTCUSDT,ETHUSDT",
				"DAILY_LOSS_LIMIT":    "0.03",
				"MAX_DRAWDOWN":        "0.15",
				"TRADING_CYCLE_INTERVAL": "60",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if len(settings.Symbols) != 2 {
					t.Fatalf("expected 2 symbols, got %d", len(settings.Symbols))
				}
				if settings.DailyLossLimit != 0.03 {
					t.Errorf("expected DailyLossLimit 0.03, got %f", settings.DailyLossLimit)
				}
				if settings.MaxDrawdown != 0.15 {
					t.Errorf("expected MaxDrawdown 0.15, got %f", settings.MaxDrawdown)
				}
				if settings.TradingCycleInterval != 60*time.Second {
					t.Errorf("expected TradingCycleInterval 60s, got %v", settings.TradingCycleInterval)
				}
			},
		},
		{
			name: "missing API key",
			envVars: map[string]string{
				"EXCHANGE_API_SECRET": "test_secret",
			},
			wantErr: true,
		},
		{
			name: "missing secret",
			envVars: map[string]string{
				"EXCHANGE_API_KEY": "test_key",
			},
			wantErr: true,
		},
		{
			name:    "missing both credentials",
			envVars: map[string]string{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
api:
  key: "yaml_key"
  secret: "yaml_secret"
  baseURL: "https://api.exchange.example/futures"
  wsURL: "wss://stream.exchange.example/public"
trading:
  symbols: ["BTCUSDT", "ETHUSDT"]
  paperTrading: true
capital:
  maxTotalAllocation: 0.8
  kellyFraction: 0.2
  dailyLossLimit: 0.04
  weeklyLossLimit: 0.08
  maxDrawdown: 0.18
system:
  metricsPort: 9191
  restTimeout: "15s"
`

	t.Run("valid YAML config", func(t *testing.T) {
		clearTestEnv(t)
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
			t.Fatalf("failed to write test config file: %v", err)
		}

		settings, err := loadFromYAML(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.APIKey != "yaml_key" {
			t.Errorf("expected APIKey 'yaml_key', got %s", settings.APIKey)
		}
		if settings.MaxTotalAllocation != 0.8 {
			t.Errorf("expected MaxTotalAllocation 0.8, got %f", settings.MaxTotalAllocation)
		}
		if settings.MetricsPort != 9191 {
			t.Errorf("expected MetricsPort 9191, got %d", settings.MetricsPort)
		}
		if settings.RESTTimeout != 15*time.Second {
			t.Errorf("expected RESTTimeout 15s, got %v", settings.RESTTimeout)
		}
	})

	t.Run("env overrides YAML credentials", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("EXCHANGE_API_KEY", "env_key")
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
			t.Fatalf("failed to write test config file: %v", err)
		}

		settings, err := loadFromYAML(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.APIKey != "env_key" {
			t.Errorf("expected env override APIKey 'env_key', got %s", settings.APIKey)
		}
		if settings.APISecret != "yaml_secret" {
			t.Errorf("expected YAML APISecret 'yaml_secret', got %s", settings.APISecret)
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("load from env when no config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("EXCHANGE_API_KEY", "env_key")
		t.Setenv("EXCHANGE_API_SECRET", "env_secret")
		t.Setenv("SYMBOLS", "BTCUSDT")

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.APIKey != "env_key" {
			t.Errorf("expected APIKey 'env_key', got %s", settings.APIKey)
		}
	})

	t.Run("requires FORCE_LIVE_TRADING outside paper trading", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("EXCHANGE_API_KEY", "env_key")
		t.Setenv("EXCHANGE_API_SECRET", "env_secret")
		t.Setenv("SYMBOLS", "BTCUSDT")
		t.Setenv("PAPER_TRADING", "false")

		if _, err := Load(); err == nil {
			t.Error("expected error requiring FORCE_LIVE_TRADING, got none")
		}
	})
}

func TestResolveSymbols(t *testing.T) {
	settings := Settings{
		Symbols: []string{"BTCUSDT", "ETHUSDT"},
		SymbolConfigs: map[string]SymbolConfig{
			"BTCUSDT": {Leverage: 10, PortfolioWeight: 0.6, MaxPositions: 2},
		},
	}

	resolved := settings.ResolveSymbols()
	if len(resolved) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(resolved))
	}
	if resolved[0].Leverage != 10 || resolved[0].PortfolioWeight != 0.6 || resolved[0].MaxConcurrentPos != 2 {
		t.Errorf("expected overridden BTCUSDT config, got %+v", resolved[0])
	}
	if resolved[1].Leverage != 5 {
		t.Errorf("expected default leverage 5 for ETHUSDT, got %d", resolved[1].Leverage)
	}
}

func clearTestEnv(t *testing.T) {
	envVars := []string{
		"EXCHANGE_API_KEY", "EXCHANGE_API_SECRET", "EXCHANGE_API_PASSPHRASE",
		"SYMBOLS", "BASE_URL", "WS_URL", "PAPER_TRADING", "FORCE_LIVE_TRADING",
		"MAX_TOTAL_ALLOCATION", "KELLY_FRACTION", "DAILY_LOSS_LIMIT",
		"WEEKLY_LOSS_LIMIT", "MAX_DRAWDOWN", "MAKER_FEE", "TAKER_FEE",
		"TRADING_CYCLE_INTERVAL", "METRICS_PORT", "CONTROL_PORT", "CONFIG_FILE",
		"MASTER_KEY",
	}
	for _, env := range envVars {
		t.Setenv(env, "")
	}
}
