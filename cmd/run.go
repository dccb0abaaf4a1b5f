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
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blnkfinance/conciliator"
	"github.com/spf13/cobra"
)

// runCommands defines "run <job>", which runs one job in the foreground under the same
// lock as the scheduled runs.
func runCommands(c *conciliatorInstance) *cobra.Command {
	var (
		wait    time.Duration
		enqueue bool
	)
	cmd := &cobra.Command{
		Use:       "run <job>",
		Short:     "run one job now",
		Long:      fmt.Sprintf("run one job now. Jobs: %s", strings.Join(conciliator.Jobs(), ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: conciliator.Jobs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer c.conciliator.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if enqueue {
				taskID, err := c.conciliator.EnqueueJob(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s queued: %s\n", args[0], taskID)
				return nil
			}

			status, err := c.conciliator.RunJobWait(ctx, args[0], wait)
			fmt.Printf("%s: %s\n", args[0], status)
			return err
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "how long to wait for a running instance of the job to finish")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the job for the workers instead of running it here")

	return cmd
}
