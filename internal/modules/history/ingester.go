package history

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/rotor/internal/domain"
)

// IngestReport summarizes one ingest call
type IngestReport struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Ingester validates incoming market data before it reaches the event log.
// Bars that fail sanity checks are dropped and counted; they never enter the
// history database.
type Ingester struct {
	historyDB *HistoryDB
	validator *BarValidator
	log       zerolog.Logger
}

// NewIngester creates a new market data ingester
func NewIngester(historyDB *HistoryDB, log zerolog.Logger) *Ingester {
	return &Ingester{
		historyDB: historyDB,
		validator: NewBarValidator(log),
		log:       log.With().Str("service", "ingester").Logger(),
	}
}

// IngestBars validates and appends price bars. Bars must be for a single
// instrument in ascending date order.
func (i *Ingester) IngestBars(bars []domain.PriceBar) (IngestReport, error) {
	if len(bars) == 0 {
		return IngestReport{}, nil
	}

	instrumentID := bars[0].InstrumentID
	for _, bar := range bars {
		if bar.InstrumentID != instrumentID {
			return IngestReport{}, fmt.Errorf("mixed instruments in bar batch: %s and %s", instrumentID, bar.InstrumentID)
		}
	}

	valid, rejected := i.validator.FilterBars(bars)
	if err := i.historyDB.AppendBars(valid); err != nil {
		return IngestReport{}, err
	}

	if rejected > 0 {
		i.log.Warn().
			Str("instrument_id", instrumentID).
			Int("rejected", rejected).
			Msg("Bars rejected during ingest")
	}

	return IngestReport{Accepted: len(valid), Rejected: rejected}, nil
}

// IngestDistributions appends distribution events. Amounts must be positive;
// the append rejects the whole batch otherwise.
func (i *Ingester) IngestDistributions(events []domain.DistributionEvent) (IngestReport, error) {
	if len(events) == 0 {
		return IngestReport{}, nil
	}
	if err := i.historyDB.AppendDistributions(events); err != nil {
		return IngestReport{}, err
	}
	return IngestReport{Accepted: len(events)}, nil
}
