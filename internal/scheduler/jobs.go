package scheduler

import (
	"context"
	"time"

	"github.com/stockerhq/stocker/internal/modules/feed"
	"github.com/stockerhq/stocker/internal/modules/trading"
	"github.com/stockerhq/stocker/internal/reliability"
)

// FeedTickJob advances every simulated price by one perturbation step
type FeedTickJob struct {
	simulator *feed.Simulator
}

// NewFeedTickJob creates a new feed tick job
func NewFeedTickJob(simulator *feed.Simulator) *FeedTickJob {
	return &FeedTickJob{simulator: simulator}
}

func (j *FeedTickJob) Name() string { return "feed_tick" }

func (j *FeedTickJob) Run() error {
	j.simulator.Tick()
	return nil
}

// FeedStateJob persists the simulator's prices so a restart resumes from
// the last published quotes.
type FeedStateJob struct {
	simulator *feed.Simulator
	dataDir   string
}

// NewFeedStateJob creates a new feed state persistence job
func NewFeedStateJob(simulator *feed.Simulator, dataDir string) *FeedStateJob {
	return &FeedStateJob{simulator: simulator, dataDir: dataDir}
}

func (j *FeedStateJob) Name() string { return "feed_state" }

func (j *FeedStateJob) Run() error {
	return j.simulator.SaveState(j.dataDir)
}

// ReconcileJob repairs position snapshots that drifted from the ledger
type ReconcileJob struct {
	reconciler *trading.Reconciler
}

// NewReconcileJob creates a new reconcile job
func NewReconcileJob(reconciler *trading.Reconciler) *ReconcileJob {
	return &ReconcileJob{reconciler: reconciler}
}

func (j *ReconcileJob) Name() string { return "reconcile" }

func (j *ReconcileJob) Run() error {
	_, err := j.reconciler.ReconcileAll()
	return err
}

// BackupJob uploads a data directory archive to the object store
type BackupJob struct {
	backup  *reliability.BackupService
	timeout time.Duration
}

// NewBackupJob creates a new backup job
func NewBackupJob(backup *reliability.BackupService) *BackupJob {
	return &BackupJob{backup: backup, timeout: 10 * time.Minute}
}

func (j *BackupJob) Name() string { return "backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.backup.CreateAndUploadBackup(ctx)
}
