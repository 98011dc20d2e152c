package reliability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BackupJob runs a cloud backup on schedule
type BackupJob struct {
	backupService *BackupService
	log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(backupService *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backupService: backupService,
		log:           log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes one backup. Failures are logged, not propagated.
func (j *BackupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.backupService.CreateAndUploadBackup(ctx); err != nil {
		j.log.Error().Err(err).Msg("Backup failed")
	}
}
