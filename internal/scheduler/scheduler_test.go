package scheduler

import (
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int64
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Run()         { j.runs.Add(1) }

func TestRegister_RejectsInvalidCronSpec(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.Register("not a cron spec", &countingJob{}))
}

func TestRegister_AcceptsStandardSpecs(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.Register("0 18 * * 1-5", &countingJob{}))
	require.NoError(t, s.Register("30 2 * * *", &countingJob{}))
}

func TestStartStop(t *testing.T) {
	s := New(zerolog.Nop())
	require.NoError(t, s.Register("* * * * *", &countingJob{}))

	// Stop blocks until running jobs drain; with nothing due this returns
	// immediately
	s.Start()
	s.Stop()
}
