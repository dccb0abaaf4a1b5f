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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/blnkfinance/conciliator"
	"github.com/blnkfinance/conciliator/config"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func initializeWorkerServer(conf *config.Configuration, redisOpt asynq.RedisClientOpt) *asynq.Server {
	return asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: conf.Jobs.Concurrency,
			Queues:      map[string]int{conf.Jobs.Queue: 1},
			Logger:      logrus.StandardLogger(),
		},
	)
}

func initializeScheduler(conf *config.Configuration, redisOpt asynq.RedisClientOpt) (*asynq.Scheduler, int, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: logrus.StandardLogger()})
	n, err := conciliator.RegisterSchedules(scheduler, conf)
	if err != nil {
		return nil, 0, err
	}
	return scheduler, n, nil
}

// startMonitoring serves asynqmon under /monitoring when a monitoring port is configured.
func startMonitoring(conf *config.Configuration, redisOpt asynq.RedisClientOpt) {
	if conf.Jobs.MonitoringPort == "" {
		return
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: redisOpt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Jobs.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
}

// workerCommands defines the "workers" command: the asynq server that runs queued jobs and
// the scheduler that queues them on their cron specs.
func workerCommands(c *conciliatorInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start conciliator workers and job scheduler",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := c.cnf
			defer c.conciliator.Close()

			shutdown, err := initializeObservability(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			redisOpt, err := conciliator.RedisConnOpt(conf.Redis)
			if err != nil {
				log.Fatal(err)
			}

			srv := initializeWorkerServer(conf, redisOpt)
			mux := asynq.NewServeMux()
			mux.HandleFunc(conciliator.TaskTypeRunJob, c.conciliator.ProcessJobTask)

			scheduler, n, err := initializeScheduler(conf, redisOpt)
			if err != nil {
				log.Fatal(err)
			}
			logrus.Infof("registered %d periodic jobs", n)

			startMonitoring(conf, redisOpt)

			if err := scheduler.Start(); err != nil {
				log.Fatalf("could not start scheduler: %v", err)
			}
			defer scheduler.Shutdown()

			if err := srv.Start(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			<-sigs
			srv.Shutdown()
		},
	}

	return cmd
}
