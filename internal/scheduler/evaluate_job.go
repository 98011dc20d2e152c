package scheduler

import (
	"github.com/aristath/rotor/internal/modules/rotation"
	"github.com/rs/zerolog"
)

// EvaluateJob runs one evaluation cycle on schedule
type EvaluateJob struct {
	rotationService *rotation.Service
	log             zerolog.Logger
}

// NewEvaluateJob creates a new evaluation job
func NewEvaluateJob(rotationService *rotation.Service, log zerolog.Logger) *EvaluateJob {
	return &EvaluateJob{
		rotationService: rotationService,
		log:             log.With().Str("job", "evaluate").Logger(),
	}
}

// Name returns the job name
func (j *EvaluateJob) Name() string {
	return "evaluate"
}

// Run executes one evaluation cycle. Failures are logged, not propagated:
// the next scheduled trigger simply tries again against fresh data.
func (j *EvaluateJob) Run() {
	result, err := j.rotationService.RunCycle()
	if err != nil {
		j.log.Error().Err(err).Msg("Evaluation cycle failed")
		return
	}

	j.log.Info().
		Str("cycle", result.CycleID).
		Int("decisions", len(result.Decisions)).
		Msg("Scheduled evaluation completed")
}
