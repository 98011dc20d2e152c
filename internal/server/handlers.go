package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aristath/rotor/internal/domain"
	"github.com/aristath/rotor/internal/modules/history"
	"github.com/aristath/rotor/internal/modules/portfolio"
	"github.com/aristath/rotor/internal/modules/rotation"
	"github.com/aristath/rotor/internal/modules/settings"
	"github.com/aristath/rotor/internal/modules/universe"
)

// handlers bundles the HTTP handlers and their dependencies
type handlers struct {
	rotationService *rotation.Service
	decisionRepo    *rotation.DecisionRepository
	holdingRepo     *portfolio.HoldingRepository
	instrumentRepo  *universe.InstrumentRepository
	settingsRepo    *settings.Repository
	ingester        *history.Ingester
	log             zerolog.Logger
}

func newHandlers(cfg Config, log zerolog.Logger) *handlers {
	return &handlers{
		rotationService: cfg.RotationService,
		decisionRepo:    cfg.DecisionRepo,
		holdingRepo:     cfg.HoldingRepo,
		instrumentRepo:  cfg.InstrumentRepo,
		settingsRepo:    cfg.SettingsRepo,
		ingester:        cfg.Ingester,
		log:             log,
	}
}

// triggerEvaluation handles POST /api/evaluate
func (h *handlers) triggerEvaluation(w http.ResponseWriter, r *http.Request) {
	result, err := h.rotationService.RunCycle()
	if err != nil {
		h.log.Error().Err(err).Msg("Evaluation cycle failed")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getCycle handles GET /api/cycle - the full last cycle result
func (h *handlers) getCycle(w http.ResponseWriter, r *http.Request) {
	result := h.rotationService.LastResult()
	if result == nil {
		writeError(w, http.StatusNotFound, "no evaluation cycle has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getRankings handles GET /api/rankings
func (h *handlers) getRankings(w http.ResponseWriter, r *http.Request) {
	result := h.rotationService.LastResult()
	if result == nil {
		writeError(w, http.StatusNotFound, "no evaluation cycle has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycle_id": result.CycleID,
		"as_of":    result.CompletedAt,
		"rankings": result.Rankings,
		"failures": result.Failures,
	})
}

// getCorrelations handles GET /api/correlations
func (h *handlers) getCorrelations(w http.ResponseWriter, r *http.Request) {
	result := h.rotationService.LastResult()
	if result == nil || result.Matrix == nil {
		writeError(w, http.StatusNotFound, "no correlation snapshot available yet")
		return
	}
	writeJSON(w, http.StatusOK, result.Matrix)
}

// getQualifications handles GET /api/qualifications
func (h *handlers) getQualifications(w http.ResponseWriter, r *http.Request) {
	result := h.rotationService.LastResult()
	if result == nil {
		writeError(w, http.StatusNotFound, "no evaluation cycle has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycle_id":       result.CycleID,
		"qualifications": result.Qualified,
	})
}

// getDecisions handles GET /api/decisions?limit=N (from the ledger)
func (h *handlers) getDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	decisions, err := h.decisionRepo.ListRecent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list decisions")
		writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"decisions": decisions})
}

// getHoldings handles GET /api/holdings
func (h *handlers) getHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.holdingRepo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list holdings")
		writeError(w, http.StatusInternalServerError, "failed to list holdings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"holdings": holdings})
}

// getInstruments handles GET /api/instruments
func (h *handlers) getInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.instrumentRepo.GetActive()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list instruments")
		writeError(w, http.StatusInternalServerError, "failed to list instruments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"instruments": instruments})
}

// getSettings handles GET /api/settings
func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settingsRepo.Load()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// putSettings handles PUT /api/settings. The repository validates before
// persisting; malformed parameters never reach the engine.
func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	var cfg settings.StrategyConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload")
		return
	}

	if err := h.settingsRepo.Save(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// ingestBars handles POST /api/history/bars. The batch must be for one
// instrument in ascending date order; invalid bars are dropped, not stored.
func (h *handlers) ingestBars(w http.ResponseWriter, r *http.Request) {
	var bars []domain.PriceBar
	if err := json.NewDecoder(r.Body).Decode(&bars); err != nil {
		writeError(w, http.StatusBadRequest, "invalid bar payload")
		return
	}

	report, err := h.ingester.IngestBars(bars)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ingestDistributions handles POST /api/history/distributions
func (h *handlers) ingestDistributions(w http.ResponseWriter, r *http.Request) {
	var events []domain.DistributionEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, "invalid distribution payload")
		return
	}

	report, err := h.ingester.IngestDistributions(events)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
