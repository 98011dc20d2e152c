package rotation

import (
	"github.com/aristath/rotor/internal/domain"
	"github.com/aristath/rotor/internal/modules/settings"
)

// InstrumentSource defines the contract for universe access.
// Used by the cycle service to enable testing with mocks.
type InstrumentSource interface {
	GetActive() ([]domain.Instrument, error)
}

// MarketDataSource defines the contract for historical data access.
// All reads happen while the input snapshot is taken; no I/O occurs during
// the computation itself.
type MarketDataSource interface {
	GetBars(instrumentID string, limit int) ([]domain.PriceBar, error)
	GetDistributions(instrumentID string) ([]domain.DistributionEvent, error)
	LatestClose(instrumentID string) (float64, bool, error)
}

// HoldingSource defines the contract for portfolio access
type HoldingSource interface {
	GetAll() ([]domain.Holding, error)
}

// SettingsSource defines the contract for strategy configuration access
type SettingsSource interface {
	Load() (settings.StrategyConfig, error)
}

// DecisionSink persists a completed cycle's decisions.
// Nil-able: evaluation works without persistence (e.g. dry runs in tests).
type DecisionSink interface {
	SaveCycle(result *CycleResult) error
}
