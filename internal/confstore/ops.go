package confstore

import (
	"fmt"
	"time"

	"crypto-signal-bot/internal/indicator"
	"crypto-signal-bot/internal/model"
)

// The apply* functions mutate a snapshot in place. Both backends funnel
// their writes through them so validation and matching rules stay
// identical regardless of where the document lives.

func applyAddMarket(s *Snapshot, m model.Market, indicators []indicator.Config) error {
	if _, err := model.TimeframeDuration(m.Timeframe); err != nil {
		return err
	}
	for i := range s.Markets {
		if s.Markets[i].Market == m {
			return fmt.Errorf("%w: %s", ErrMarketExists, m.Key())
		}
	}
	if len(indicators) == 0 {
		indicators = DefaultIndicators()
	}
	for _, cfg := range indicators {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	s.Markets = append(s.Markets, MarketConfig{
		Market:     m,
		Indicators: append([]indicator.Config(nil), indicators...),
	})
	return nil
}

func applyRemoveMarket(s *Snapshot, m model.Market) error {
	for i := range s.Markets {
		if s.Markets[i].Market == m {
			s.Markets = append(s.Markets[:i], s.Markets[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMarketNotFound, m.Key())
}

func applySetIndicator(s *Snapshot, m model.Market, cfg indicator.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	mc := findMarket(s, m)
	if mc == nil {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, m.Key())
	}
	label := cfg.Label()
	for i := range mc.Indicators {
		if mc.Indicators[i].Label() == label {
			mc.Indicators[i] = cfg
			return nil
		}
	}
	mc.Indicators = append(mc.Indicators, cfg)
	return nil
}

func applyEnableIndicator(s *Snapshot, m model.Market, label string, enabled bool) error {
	mc := findMarket(s, m)
	if mc == nil {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, m.Key())
	}
	for i := range mc.Indicators {
		if mc.Indicators[i].Label() == label {
			mc.Indicators[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("indicator %q not configured on %s", label, m.Key())
}

func applySetInterval(s *Snapshot, d time.Duration) error {
	if d < time.Second {
		return fmt.Errorf("interval %v too short", d)
	}
	s.Interval = d
	return nil
}

func applySetMarketInterval(s *Snapshot, m model.Market, d time.Duration) error {
	if d < 0 || (d > 0 && d < time.Second) {
		return fmt.Errorf("interval %v too short", d)
	}
	mc := findMarket(s, m)
	if mc == nil {
		return fmt.Errorf("%w: %s", ErrMarketNotFound, m.Key())
	}
	mc.Interval = d
	return nil
}

func applySetCooldown(s *Snapshot, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("cooldown %v negative", d)
	}
	s.Cooldown = d
	return nil
}

func findMarket(s *Snapshot, m model.Market) *MarketConfig {
	for i := range s.Markets {
		if s.Markets[i].Market == m {
			return &s.Markets[i]
		}
	}
	return nil
}
