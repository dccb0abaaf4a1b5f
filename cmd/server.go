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

	"github.com/blnkfinance/conciliator/api"
	"github.com/blnkfinance/conciliator/config"
	trace "github.com/blnkfinance/conciliator/internal/traces"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func initializeRouter(c *conciliatorInstance) (*gin.Engine, error) {
	a := api.NewAPI(c.conciliator)
	if a == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	return a.Router(), nil
}

// initializeObservability sets up tracing when telemetry is enabled. The returned shutdown
// func is never nil.
func initializeObservability(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	if !cfg.EnableTelemetry {
		return func(context.Context) error { return nil }, nil
	}

	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

// serverCommands returns the command that serves the HTTP API.
func serverCommands(c *conciliatorInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start conciliator server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			defer c.conciliator.Close()

			shutdown, err := initializeObservability(ctx, c.cnf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			router, err := initializeRouter(c)
			if err != nil {
				log.Fatal(err)
			}

			if err := startServer(router, c.cnf.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
