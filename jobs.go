/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package conciliator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/blnkfinance/conciliator/internal/apierror"
	redlock "github.com/blnkfinance/conciliator/internal/lock"
	"github.com/blnkfinance/conciliator/internal/notification"
	"github.com/blnkfinance/conciliator/model"
	"github.com/sirupsen/logrus"
)

const (
	JobIngestion      = "ingestion"
	JobReconciliation = "reconciliation"
	JobOmieAccounts   = "omie_accounts"
	JobSyncFee        = "sync_fee"
	JobSyncStatus     = "sync_status"
	JobSyncDates      = "sync_dates"
)

// Terminal statuses of a job run.
const (
	StatusSuccess = "Success"
	StatusSkipped = "Skipped"
	StatusFailed  = "Failed"
)

const jobLockPrefix = "conciliator:job:"

type jobFunc func(ctx context.Context) error

// Jobs lists the job names RunJob accepts.
func Jobs() []string {
	names := []string{JobIngestion, JobReconciliation, JobOmieAccounts, JobSyncFee, JobSyncStatus, JobSyncDates}
	sort.Strings(names)
	return names
}

func (c *Conciliator) jobs() map[string]jobFunc {
	return map[string]jobFunc{
		JobIngestion: func(ctx context.Context) error {
			to := c.today()
			from := to.AddDate(0, 0, -c.config.Jobs.IngestionLookbackDays)
			_, err := c.IngestTransactions(ctx, from, to)
			return err
		},
		JobReconciliation: func(ctx context.Context) error {
			_, err := c.ReconcileTransactions(ctx)
			return err
		},
		JobOmieAccounts: func(ctx context.Context) error {
			_, err := c.SyncOmieAccounts(ctx)
			return err
		},
		JobSyncFee: func(ctx context.Context) error {
			_, err := c.SyncFeeFlags(ctx)
			return err
		},
		JobSyncStatus: func(ctx context.Context) error {
			_, err := c.SyncReceiptStatus(ctx)
			return err
		},
		JobSyncDates: func(ctx context.Context) error {
			_, err := c.SyncExpectedDates(ctx)
			return err
		},
	}
}

// RunJob runs the named job unless another run of it holds its lock, in which case it
// returns StatusSkipped.
func (c *Conciliator) RunJob(ctx context.Context, name string) (string, error) {
	return c.runJob(ctx, name, 0)
}

// RunJobWait is RunJob, waiting up to wait for a running instance of the job to finish.
func (c *Conciliator) RunJobWait(ctx context.Context, name string, wait time.Duration) (string, error) {
	return c.runJob(ctx, name, wait)
}

func (c *Conciliator) runJob(ctx context.Context, name string, wait time.Duration) (string, error) {
	job, ok := c.jobs()[name]
	if !ok {
		return StatusFailed, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown job %q", name), nil)
	}

	ctx, span := tracer.Start(ctx, "RunJob "+name)
	defer span.End()

	log := logrus.WithField("job", name)
	lockTimeout := time.Duration(c.config.Jobs.LockTimeoutSec) * time.Second
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Minute
	}
	locker := redlock.NewLocker(c.redis, jobLockPrefix+name, model.GenerateUUIDWithSuffix("run"))

	var err error
	if wait > 0 {
		err = locker.WaitLock(ctx, lockTimeout, wait)
	} else {
		err = locker.Lock(ctx, lockTimeout)
	}
	if err != nil {
		if errors.Is(err, redlock.ErrLockHeld) {
			log.Info("job already running, skipped")
			return StatusSkipped, nil
		}
		span.RecordError(err)
		return StatusFailed, fmt.Errorf("failed to lock job %s: %w", name, err)
	}

	stop := c.keepLock(ctx, locker, lockTimeout)
	defer func() {
		stop()
		if err := locker.Unlock(context.Background()); err != nil {
			log.WithError(err).Warn("failed to release job lock")
		}
	}()

	start := time.Now()
	log.Info("job started")
	if err := job(ctx); err != nil {
		span.RecordError(err)
		log.WithError(err).WithField("duration", time.Since(start).String()).Error("job failed")
		notification.NotifyError(name, err)
		return StatusFailed, err
	}

	log.WithField("duration", time.Since(start).String()).Info("job finished")
	return StatusSuccess, nil
}

// keepLock extends the job lock at half its lifetime until the returned func is called.
func (c *Conciliator) keepLock(ctx context.Context, locker *redlock.Locker, lockTimeout time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(lockTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := locker.ExtendLock(ctx, lockTimeout); err != nil {
					logrus.WithField("key", locker.Key()).WithError(err).Warn("failed to extend job lock")
				}
			}
		}
	}()
	return func() { close(done) }
}
