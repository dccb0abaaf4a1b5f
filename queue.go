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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/internal/apierror"
	redis_db "github.com/blnkfinance/conciliator/internal/redis-db"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// TaskTypeRunJob is the asynq task type that runs one named job.
const TaskTypeRunJob = "conciliator:run_job"

// Queue represents a queue for handling job triggers.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	name      string
	unique    time.Duration
}

// JobPayload is the body of a TaskTypeRunJob task.
type JobPayload struct {
	Job string `json:"job"`
}

// RedisConnOpt builds the asynq connection options from the redis configuration.
func RedisConnOpt(cnf config.RedisConfig) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(cnf.Dns, cnf.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	queueOptions, err := RedisConnOpt(conf.Redis)
	if err != nil {
		return nil, err
	}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
		name:      conf.Jobs.Queue,
		unique:    time.Duration(conf.Jobs.LockTimeoutSec) * time.Second,
	}, nil
}

// NewJobTask builds the task that runs job.
func NewJobTask(job string) (*asynq.Task, error) {
	payload, err := json.Marshal(JobPayload{Job: job})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRunJob, payload), nil
}

// Enqueue schedules one run of job. A trigger while an identical task is still queued
// returns StatusSkipped.
func (q *Queue) Enqueue(ctx context.Context, job string) (string, error) {
	task, err := NewJobTask(job)
	if err != nil {
		return StatusFailed, err
	}

	opts := []asynq.Option{asynq.Queue(q.name), asynq.MaxRetry(0)}
	if q.unique > 0 {
		opts = append(opts, asynq.Unique(q.unique))
	}

	info, err := q.Client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return StatusSkipped, nil
		}
		return StatusFailed, err
	}
	logrus.WithFields(logrus.Fields{"job": job, "task": info.ID, "queue": info.Queue}).Info(" [*] Successfully enqueued job")
	return info.ID, nil
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}

// EnqueueJob validates the job name and queues one run of it. It returns the task id, or
// StatusSkipped when the same job is already queued.
func (c *Conciliator) EnqueueJob(ctx context.Context, job string) (string, error) {
	if _, ok := c.jobs()[job]; !ok {
		return StatusFailed, apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown job %q", job), nil)
	}
	if c.queue == nil {
		return StatusFailed, apierror.NewAPIError(apierror.ErrInternalServer, "job queue is not configured", nil)
	}
	return c.queue.Enqueue(ctx, job)
}

// ProcessJobTask is the asynq handler of TaskTypeRunJob. Failed runs are not retried by the
// queue; the next trigger picks the work up again.
func (c *Conciliator) ProcessJobTask(ctx context.Context, t *asynq.Task) error {
	var payload JobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid job payload: %v: %w", err, asynq.SkipRetry)
	}

	status, err := c.RunJob(ctx, payload.Job)
	if err != nil {
		return fmt.Errorf("job %s %s: %v: %w", payload.Job, status, err, asynq.SkipRetry)
	}
	logrus.WithFields(logrus.Fields{"job": payload.Job, "status": status}).Info(" [*] Job processed")
	return nil
}

// RegisterSchedules adds a periodic trigger for every job that has a cron spec configured.
// The maintenance schedule drives sync_fee, sync_status and sync_dates.
func RegisterSchedules(scheduler *asynq.Scheduler, conf *config.Configuration) (int, error) {
	schedules := []struct {
		spec string
		jobs []string
	}{
		{conf.Jobs.OmieAccountsSchedule, []string{JobOmieAccounts}},
		{conf.Jobs.IngestionSchedule, []string{JobIngestion}},
		{conf.Jobs.ReconciliationSchedule, []string{JobReconciliation}},
		{conf.Jobs.MaintenanceSchedule, []string{JobSyncFee, JobSyncStatus, JobSyncDates}},
	}

	registered := 0
	for _, s := range schedules {
		if s.spec == "" {
			continue
		}
		for _, job := range s.jobs {
			task, err := NewJobTask(job)
			if err != nil {
				return registered, err
			}
			entryID, err := scheduler.Register(s.spec, task, asynq.Queue(conf.Jobs.Queue), asynq.MaxRetry(0))
			if err != nil {
				return registered, fmt.Errorf("failed to schedule %s with %q: %w", job, s.spec, err)
			}
			logrus.WithFields(logrus.Fields{"job": job, "spec": s.spec, "entry": entryID}).Info("job scheduled")
			registered++
		}
	}
	return registered, nil
}
