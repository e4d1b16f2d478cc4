package cfg

import (
	"fmt"
	"os"
	"time"

	"tradingengine/internal/common"
)

// validateSettings performs comprehensive validation of configuration values.
func validateSettings(s *Settings) error {
	if err := validateCredentials(s); err != nil {
		return err
	}
	if err := validateURLs(s); err != nil {
		return err
	}
	if err := validateTradingParameters(s); err != nil {
		return err
	}
	if err := validateLiveTradingRestrictions(s); err != nil {
		return err
	}
	if err := validateMLParameters(s); err != nil {
		return err
	}
	if err := validateSystemParameters(s); err != nil {
		return err
	}
	if err := validateSymbolConfigs(s); err != nil {
		return err
	}
	return nil
}

func validateCredentials(s *Settings) error {
	if s.APIKey == "" || s.APISecret == "" {
		return fmt.Errorf(common.ErrMsgCredentialsRequired)
	}
	return nil
}

func validateURLs(s *Settings) error {
	if s.BaseURL == "" {
		return fmt.Errorf(common.ErrMsgBaseURLRequired)
	}
	if s.WsURL == "" {
		return fmt.Errorf(common.ErrMsgWsURLRequired)
	}
	return nil
}

func validateTradingParameters(s *Settings) error {
	if len(s.Symbols) == 0 {
		return fmt.Errorf(common.ErrMsgSymbolRequired)
	}
	if s.MaxTotalAllocation <= 0 || s.MaxTotalAllocation > 1 {
		return fmt.Errorf("maxTotalAllocation must be between 0 and 1")
	}
	if s.KellyFraction <= 0 || s.KellyFraction > common.KellyMaxFraction {
		return fmt.Errorf("kellyFraction must be between 0 and %g", common.KellyMaxFraction)
	}
	if s.DailyLossLimit <= 0 || s.DailyLossLimit > 1 {
		return fmt.Errorf("dailyLossLimit must be between 0 and 1")
	}
	if s.WeeklyLossLimit <= 0 || s.WeeklyLossLimit > 1 {
		return fmt.Errorf("weeklyLossLimit must be between 0 and 1")
	}
	if s.MaxDrawdown <= 0 || s.MaxDrawdown > 1 {
		return fmt.Errorf("maxDrawdown must be between 0 and 1")
	}

	sum := 0.0
	n := 0
	for _, name := range s.Symbols {
		if sc, ok := s.SymbolConfigs[name]; ok && sc.PortfolioWeight > 0 {
			sum += sc.PortfolioWeight
			n++
		}
	}
	if n == len(s.Symbols) && n > 0 {
		if diff := sum - 1.0; diff > common.PortfolioWeightTolerance || diff < -common.PortfolioWeightTolerance {
			return fmt.Errorf(common.ErrMsgPortfolioWeightsSum)
		}
	}
	return nil
}

func validateLiveTradingRestrictions(s *Settings) error {
	if s.PaperTrading {
		return nil
	}
	if os.Getenv(common.EnvForceLiveTrading) != "true" {
		return fmt.Errorf(common.ErrMsgForceLiveTradingRequired)
	}
	return nil
}

func validateMLParameters(s *Settings) error {
	if s.EnableMLModels && (s.MLWeight < 0 || s.MLWeight > 1) {
		return fmt.Errorf("mlWeight must be between 0 and 1")
	}
	if s.NewsWeight < 0 || s.NewsWeight > 1 {
		return fmt.Errorf("newsWeight must be between 0 and 1")
	}
	if s.MinNewsConfidence < 0 || s.MinNewsConfidence > 1 {
		return fmt.Errorf("minNewsConfidence must be between 0 and 1")
	}
	return nil
}

func validateSystemParameters(s *Settings) error {
	if s.PingInterval < 1*time.Second || s.PingInterval > 5*time.Minute {
		return fmt.Errorf("pingInterval must be between 1s and 5m")
	}
	if s.RESTTimeout < 1*time.Second || s.RESTTimeout > 1*time.Minute {
		return fmt.Errorf("restTimeout must be between 1s and 1m")
	}
	if s.MetricsPort < common.MinMetricsPort || s.MetricsPort > common.MaxMetricsPort {
		return fmt.Errorf("metricsPort must be between %d and %d", common.MinMetricsPort, common.MaxMetricsPort)
	}
	if s.ControlPort < common.MinMetricsPort || s.ControlPort > common.MaxMetricsPort {
		return fmt.Errorf("controlPort must be between %d and %d", common.MinMetricsPort, common.MaxMetricsPort)
	}
	if s.TradingCycleInterval < 1*time.Second {
		return fmt.Errorf("tradingCycleInterval must be at least 1s")
	}
	return nil
}

func validateSymbolConfigs(s *Settings) error {
	for _, name := range s.Symbols {
		sc, ok := s.SymbolConfigs[name]
		if !ok {
			continue
		}
		if sc.Leverage != 0 && (sc.Leverage < 1 || sc.Leverage > 100) {
			return fmt.Errorf("symbol %s: leverage must be between 1 and 100", name)
		}
		if sc.PositionSizeMin != 0 && (sc.PositionSizeMin <= 0 || sc.PositionSizeMin > sc.PositionSizeStd) {
			return fmt.Errorf("symbol %s: positionSizeMin must be > 0 and <= positionSizeStd", name)
		}
		if sc.PositionSizeMax != 0 && sc.PositionSizeMax < sc.PositionSizeStd {
			return fmt.Errorf("symbol %s: positionSizeMax must be >= positionSizeStd", name)
		}
	}
	return nil
}
