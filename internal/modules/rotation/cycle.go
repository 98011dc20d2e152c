package rotation

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/aristath/rotor/internal/modules/adjustment"
	"github.com/aristath/rotor/internal/modules/correlation"
	"github.com/aristath/rotor/internal/modules/qualification"
	"github.com/aristath/rotor/internal/modules/scoring"
	"github.com/aristath/rotor/internal/modules/settings"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CycleResult is the complete output of one evaluation cycle: the ranked
// candidates, the correlation snapshot, every qualification result, and the
// emitted decisions. Immutable once the cycle completes.
type CycleResult struct {
	CycleID     string                             `json:"cycle_id"`
	StartedAt   time.Time                          `json:"started_at"`
	CompletedAt time.Time                          `json:"completed_at"`
	Config      settings.StrategyConfig            `json:"config"`
	Rankings    []domain.MomentumScore             `json:"rankings"`
	Matrix      *domain.CorrelationMatrix          `json:"correlations"`
	Qualified   []domain.QualificationResult       `json:"qualifications"`
	Decisions   []domain.RotationDecision          `json:"decisions"`
	Failures    map[string]string                  `json:"failures,omitempty"` // instrument_id -> upstream error
	Warnings    map[string][]domain.QualityWarning `json:"warnings,omitempty"`
	Gaps        map[string][]domain.DataGap        `json:"gaps,omitempty"`
}

// instrumentSnapshot is one instrument's share of the input snapshot taken
// before computation starts
type instrumentSnapshot struct {
	instrument    domain.Instrument
	bars          []domain.PriceBar
	distributions []domain.DistributionEvent
	latestClose   float64
	hasClose      bool
}

// scoredInstrument is the fan-out result for one instrument
type scoredInstrument struct {
	id     string
	series *domain.TotalReturnSeries
	score  *domain.MomentumScore
	trend  *domain.TrendContext
	err    error
}

// Service runs evaluation cycles. A mutex serializes cycles: a cycle runs to
// completion against one fixed snapshot before the next cycle's snapshot is
// taken, so overlapping schedules never compare inconsistent partial data.
type Service struct {
	instruments InstrumentSource
	marketData  MarketDataSource
	holdings    HoldingSource
	settings    SettingsSource
	decisions   DecisionSink // Optional; nil skips persistence

	mu         sync.Mutex   // Serializes cycles
	lastMu     sync.RWMutex // Guards lastResult
	lastResult *CycleResult

	log zerolog.Logger
}

// NewService creates a new evaluation cycle service
func NewService(
	instruments InstrumentSource,
	marketData MarketDataSource,
	holdings HoldingSource,
	settingsSource SettingsSource,
	decisions DecisionSink,
	log zerolog.Logger,
) *Service {
	return &Service{
		instruments: instruments,
		marketData:  marketData,
		holdings:    holdings,
		settings:    settingsSource,
		decisions:   decisions,
		log:         log.With().Str("service", "rotation").Logger(),
	}
}

// LastResult returns the most recent completed cycle, or nil before the
// first cycle
func (s *Service) LastResult() *CycleResult {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.lastResult
}

// RunCycle executes one full evaluation cycle:
//
//  1. Load and validate configuration (invalid config is cycle-fatal)
//  2. Take the input snapshot (universe, bars, distributions, holdings)
//  3. Fan out per-instrument adjustment + scoring (order-independent map)
//  4. Join, rank, compute the satellite correlation matrix
//  5. Gate candidates and generate rotation decisions
//  6. Check core holdings against their tolerance bands
//  7. Persist the decisions to the ledger
//
// Per-instrument failures exclude that instrument from ranking and rotation
// but never abort the cycle for the rest of the pool.
func (s *Service) RunCycle() (*CycleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startedAt := time.Now().UTC()

	cfg, err := s.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		// Cycle-fatal: refuse to run with ambiguous parameters
		return nil, err
	}

	result := &CycleResult{
		CycleID:   uuid.New().String(),
		StartedAt: startedAt,
		Config:    cfg,
		Failures:  make(map[string]string),
		Warnings:  make(map[string][]domain.QualityWarning),
		Gaps:      make(map[string][]domain.DataGap),
	}

	s.log.Info().Str("cycle", result.CycleID).Msg("Evaluation cycle started")

	instruments, err := s.instruments.GetActive()
	if err != nil {
		return nil, fmt.Errorf("failed to load universe: %w", err)
	}
	allHoldings, err := s.holdings.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	// Take the full data snapshot before any computation; the cycle is a
	// pure function of this snapshot from here on.
	snapshots, err := s.takeSnapshot(instruments, cfg)
	if err != nil {
		return nil, err
	}

	var satellites, cores []instrumentSnapshot
	for _, snap := range snapshots {
		if snap.instrument.Class == domain.ClassCore {
			cores = append(cores, snap)
		} else {
			satellites = append(satellites, snap)
		}
	}

	// Fan-out: per-instrument adjustment and scoring are embarrassingly
	// parallel. Fan-in collects into maps keyed by instrument ID, so
	// worker completion order can't influence the outcome.
	scored := s.scoreSatellites(satellites, cfg)

	var scores []domain.MomentumScore
	seriesByID := make(map[string]*domain.TotalReturnSeries)
	trends := make(map[string]*domain.TrendContext)
	var candidateSeries []*domain.TotalReturnSeries

	for _, sc := range scored {
		if sc.series != nil {
			seriesByID[sc.id] = sc.series
			if len(sc.series.Warnings) > 0 {
				result.Warnings[sc.id] = sc.series.Warnings
			}
			if len(sc.series.Gaps) > 0 {
				result.Gaps[sc.id] = sc.series.Gaps
			}
		}
		if sc.err != nil {
			result.Failures[sc.id] = sc.err.Error()
			continue
		}
		scores = append(scores, *sc.score)
		trends[sc.id] = sc.trend
		candidateSeries = append(candidateSeries, sc.series)
	}

	result.Rankings = scoring.Rank(scores)

	// Join point: correlation needs every candidate's aligned series.
	// Core anchors are excluded from the pool by construction.
	corrEngine := correlation.NewEngine(cfg.CorrelationWindowDays, s.log)
	result.Matrix = corrEngine.Compute(scoring.AsOf(result.Rankings), candidateSeries)

	// Gate and generator run strictly after scoring and correlation
	// complete for the full candidate set: leg-limit and
	// correlation-against-top1 depend on the global ranking.
	prices, lots := priceAndLotMaps(snapshots)
	satHoldings, coreHoldings := splitHoldings(allHoldings, snapshots)
	portfolioValue := totalValue(allHoldings, prices)

	gate := qualification.NewGate(cfg, s.log)
	generator := NewGenerator(cfg, s.log)

	rotations, qualifications := generator.RotationDecisions(RotationInput{
		CycleID:   result.CycleID,
		AsOf:      scoring.AsOf(result.Rankings),
		Ranked:    result.Rankings,
		Failures:  failureMap(result.Failures),
		Matrix:    result.Matrix,
		Holdings:  satHoldings,
		Prices:    prices,
		Lots:      lots,
		LegBudget: legBudget(portfolioValue, coreHoldings, cfg),
		Trends:    trends,
	}, gate)
	result.Qualified = qualifications
	result.Decisions = append(result.Decisions, rotations...)

	rebalances := generator.RebalanceDecisions(RebalanceInput{
		CycleID:        result.CycleID,
		AsOf:           scoring.AsOf(result.Rankings),
		Holdings:       coreHoldings,
		Prices:         prices,
		Lots:           lots,
		PortfolioValue: portfolioValue,
	})
	result.Decisions = append(result.Decisions, rebalances...)

	result.CompletedAt = time.Now().UTC()

	if s.decisions != nil {
		if err := s.decisions.SaveCycle(result); err != nil {
			// Persistence failure doesn't invalidate the computed result
			s.log.Error().Err(err).Str("cycle", result.CycleID).Msg("Failed to persist cycle")
		}
	}

	s.lastMu.Lock()
	s.lastResult = result
	s.lastMu.Unlock()

	s.log.Info().
		Str("cycle", result.CycleID).
		Int("ranked", len(result.Rankings)).
		Int("decisions", len(result.Decisions)).
		Int("failures", len(result.Failures)).
		Dur("elapsed", result.CompletedAt.Sub(result.StartedAt)).
		Msg("Evaluation cycle completed")

	return result, nil
}

// takeSnapshot loads every active instrument's bars, distributions and
// latest close. History depth is bounded by the longest window plus the
// correlation window plus headroom for the trend indicators.
func (s *Service) takeSnapshot(instruments []domain.Instrument, cfg settings.StrategyConfig) ([]instrumentSnapshot, error) {
	depth := cfg.MaxWindowDays() + cfg.CorrelationWindowDays + 250

	snapshots := make([]instrumentSnapshot, 0, len(instruments))
	for _, inst := range instruments {
		bars, err := s.marketData.GetBars(inst.ID, depth)
		if err != nil {
			return nil, fmt.Errorf("failed to load bars for %s: %w", inst.ID, err)
		}
		dists, err := s.marketData.GetDistributions(inst.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load distributions for %s: %w", inst.ID, err)
		}
		latest, hasClose, err := s.marketData.LatestClose(inst.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest close for %s: %w", inst.ID, err)
		}

		snapshots = append(snapshots, instrumentSnapshot{
			instrument:    inst,
			bars:          bars,
			distributions: dists,
			latestClose:   latest,
			hasClose:      hasClose,
		})
	}

	return snapshots, nil
}

// scoreSatellites fans per-instrument adjustment and scoring out across a
// bounded worker pool and fans the results back in. No shared mutable
// accumulators: each worker writes only its own result slot.
func (s *Service) scoreSatellites(satellites []instrumentSnapshot, cfg settings.StrategyConfig) []scoredInstrument {
	adjuster := adjustment.NewAdjuster(cfg.SuspectDropThreshold, s.log)
	scorer := scoring.NewScorer(cfg.Windows, s.log)

	results := make([]scoredInstrument, len(satellites))

	workers := runtime.NumCPU()
	if workers > len(satellites) {
		workers = len(satellites)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				snap := satellites[i]
				results[i] = s.scoreOne(snap, adjuster, scorer)
			}
		}()
	}
	for i := range satellites {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// scoreOne adjusts and scores a single instrument, isolating its failures
func (s *Service) scoreOne(snap instrumentSnapshot, adjuster *adjustment.Adjuster, scorer *scoring.Scorer) scoredInstrument {
	out := scoredInstrument{id: snap.instrument.ID}

	series, err := adjuster.Build(snap.instrument.ID, snap.bars, snap.distributions)
	if err != nil {
		out.err = err
		return out
	}
	out.series = series

	score, err := scorer.Score(series)
	if err != nil {
		out.err = err
		return out
	}
	out.score = score
	out.trend = scoring.TrendFor(series)

	return out
}

// priceAndLotMaps extracts latest closes and lot sizes from the snapshot
func priceAndLotMaps(snapshots []instrumentSnapshot) (prices, lots map[string]float64) {
	prices = make(map[string]float64, len(snapshots))
	lots = make(map[string]float64, len(snapshots))
	for _, snap := range snapshots {
		if snap.hasClose && snap.latestClose > 0 {
			prices[snap.instrument.ID] = snap.latestClose
		}
		lots[snap.instrument.ID] = snap.instrument.Lot()
	}
	return prices, lots
}

// splitHoldings partitions holdings by the instrument class recorded in the
// universe. Holdings of unknown instruments count as satellites so they are
// never silently rebalanced against a missing target.
func splitHoldings(holdings []domain.Holding, snapshots []instrumentSnapshot) (satellites, cores []domain.Holding) {
	classByID := make(map[string]domain.InstrumentClass, len(snapshots))
	for _, snap := range snapshots {
		classByID[snap.instrument.ID] = snap.instrument.Class
	}

	for _, h := range holdings {
		if classByID[h.InstrumentID] == domain.ClassCore {
			cores = append(cores, h)
		} else {
			satellites = append(satellites, h)
		}
	}
	return satellites, cores
}

// totalValue computes the portfolio's market value from holdings and latest
// closes. Holdings without a price contribute nothing (their rebalance
// fails closed separately).
func totalValue(holdings []domain.Holding, prices map[string]float64) float64 {
	var total float64
	for _, h := range holdings {
		total += h.Shares * prices[h.InstrumentID]
	}
	return total
}

// legBudget sizes a newly opened satellite leg: the portfolio value left
// after core targets, split across the configured number of legs
func legBudget(portfolioValue float64, coreHoldings []domain.Holding, cfg settings.StrategyConfig) float64 {
	coreTarget := 0.0
	for _, h := range coreHoldings {
		coreTarget += h.TargetWeight
	}
	if coreTarget > 1 {
		coreTarget = 1
	}
	return portfolioValue * (1 - coreTarget) / float64(cfg.MaxLegs)
}

// failureMap converts stored failure strings back into error values for the
// generator's rationale
func failureMap(failures map[string]string) map[string]error {
	out := make(map[string]error, len(failures))
	for id, msg := range failures {
		out[id] = fmt.Errorf("%s", msg)
	}
	return out
}
