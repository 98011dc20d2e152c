// Package scoring computes weighted multi-window momentum scores from
// total-return series and produces the deterministic candidate ranking.
package scoring

import (
	"fmt"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/aristath/rotor/internal/modules/settings"
	"github.com/rs/zerolog"
)

// Scorer computes momentum scores over the configured lookback windows.
// Pure: the same series and windows always produce the same score.
type Scorer struct {
	windows []settings.WindowWeight // Normalized (weights sum to 1)
	log     zerolog.Logger
}

// NewScorer creates a scorer for a set of validated, normalized windows
func NewScorer(windows []settings.WindowWeight, log zerolog.Logger) *Scorer {
	return &Scorer{
		windows: windows,
		log:     log.With().Str("component", "scorer").Logger(),
	}
}

// Score computes the momentum score for one instrument's series as of the
// series' last observation.
//
// Each window contributes r_N = TR[t]/TR[t-N] - 1 weighted by its configured
// weight; composite = Σ weight_i * r_Ni. A series shorter than the longest
// window fails with domain.ErrInsufficientHistory: the instrument is
// excluded from ranking rather than scored with partial windows.
func (s *Scorer) Score(series *domain.TotalReturnSeries) (*domain.MomentumScore, error) {
	if len(s.windows) == 0 {
		return nil, domain.ErrConfigurationInvalid
	}

	last, ok := series.Last()
	if !ok {
		return nil, fmt.Errorf("%w: empty series for %s", domain.ErrInsufficientHistory, series.InstrumentID)
	}

	score := &domain.MomentumScore{
		InstrumentID: series.InstrumentID,
		AsOf:         last.Date,
		Windows:      make([]domain.WindowReturn, 0, len(s.windows)),
	}

	for _, w := range s.windows {
		adjusted, err := series.ReturnOver(w.Days)
		if err != nil {
			return nil, fmt.Errorf("scoring %s over %d days: %w", series.InstrumentID, w.Days, err)
		}

		// Nominal return retained for reporting; a data gap in the raw
		// closes doesn't invalidate the adjusted score.
		nominal, err := series.NominalReturnOver(w.Days)
		if err != nil {
			nominal = adjusted
		}

		score.Windows = append(score.Windows, domain.WindowReturn{
			Days:          w.Days,
			Weight:        w.Weight,
			Return:        adjusted,
			NominalReturn: nominal,
		})
		score.Composite += w.Weight * adjusted
	}

	return score, nil
}

// AsOf returns the evaluation date of a scored batch: the latest as-of date
// across the scores, or now for an empty batch.
func AsOf(scores []domain.MomentumScore) time.Time {
	var latest time.Time
	for _, sc := range scores {
		if sc.AsOf.After(latest) {
			latest = sc.AsOf
		}
	}
	if latest.IsZero() {
		return time.Now().UTC()
	}
	return latest
}
