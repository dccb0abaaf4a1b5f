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
	"fmt"
	"log"
	"os"

	"github.com/blnkfinance/conciliator"
	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Conciliator represents the CLI application, encapsulating the root Cobra command.
type Conciliator struct {
	cmd *cobra.Command
}

// conciliatorInstance holds the engine and the configuration it was built from.
type conciliatorInstance struct {
	conciliator *conciliator.Conciliator
	cnf         *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the engine before any command runs. The
// migrate and config commands only need the configuration.
func preRun(app *conciliatorInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		if !needsEngine(cmd) {
			return nil
		}

		engine, err := setupConciliator(cnf)
		if err != nil {
			log.Fatal(err)
		}
		app.conciliator = engine
		return nil
	}
}

func needsEngine(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["engine"] == "false" {
			return false
		}
	}
	return true
}

// setupConciliator connects to the data source and builds the engine on top of it.
func setupConciliator(cfg *config.Configuration) (*conciliator.Conciliator, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	engine, err := conciliator.NewConciliator(db)
	if err != nil {
		return nil, fmt.Errorf("error creating conciliator: %v", err)
	}
	return engine, nil
}

// NewCLI creates the command-line interface with its server, workers, run, migrate and
// config subcommands.
func NewCLI() *Conciliator {
	var configFile string
	c := &conciliatorInstance{}

	var rootCmd = &cobra.Command{
		Use:   "conciliator",
		Short: "Omie and Pagar.me settlement reconciliation",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./conciliator.json", "Configuration file for the conciliator")
	rootCmd.PersistentPreRunE = preRun(c, &configFile)

	rootCmd.AddCommand(serverCommands(c))
	rootCmd.AddCommand(workerCommands(c))
	rootCmd.AddCommand(runCommands(c))
	rootCmd.AddCommand(migrateCommands(c))
	rootCmd.AddCommand(configCommands(c))

	return &Conciliator{cmd: rootCmd}
}

func (w Conciliator) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
