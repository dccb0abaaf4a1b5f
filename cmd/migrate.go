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
	"database/sql"
	"fmt"
	"log"

	"github.com/blnkfinance/conciliator"
	pgconn "github.com/blnkfinance/conciliator/internal/pg-conn"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
)

const schema = "conciliator"

// migrateCommands creates the root command for migration-related operations.
func migrateCommands(c *conciliatorInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "migrate",
		Short:       "apply or roll back the database migrations",
		Annotations: map[string]string{"engine": "false"},
	}

	cmd.AddCommand(migrateUpCommands(c))
	cmd.AddCommand(migrateDownCommands(c))

	return cmd
}

func migrationSource() migrate.EmbedFileSystemMigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: conciliator.SQLFiles,
		Root:       "sql",
	}
}

// openMigrationDB connects to the data source and makes sure the schema the migration
// table lives in exists.
func openMigrationDB(c *conciliatorInstance) (*sql.DB, error) {
	db, err := pgconn.ConnectDB(c.cnf.DataSource)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		_ = db.Close()
		return nil, err
	}
	migrate.SetSchema(schema)
	return db, nil
}

func migrateUpCommands(c *conciliatorInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use: "up",
		Run: func(cmd *cobra.Command, args []string) {
			db, err := openMigrationDB(c)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			n, err := migrate.Exec(db, "postgres", migrationSource(), migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
			} else {
				fmt.Printf("Applied %d migrations!\n", n)
			}
		},
	}

	return cmd
}

func migrateDownCommands(c *conciliatorInstance) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use: "down",
		Run: func(cmd *cobra.Command, args []string) {
			db, err := openMigrationDB(c)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}
			defer db.Close()

			n, err := migrate.ExecMax(db, "postgres", migrationSource(), migrate.Down, steps)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
			} else {
				fmt.Printf("Rolled back %d migrations!\n", n)
			}
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back, 0 rolls back all")

	return cmd
}
