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
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

const redacted = "********"

func configCommands(c *conciliatorInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "config outputs your instances computed configuration",
		Annotations: map[string]string{"engine": "false"},
		Run: func(cmd *cobra.Command, args []string) {
			cfg := *c.cnf
			if cfg.Omie.AppSecret != "" {
				cfg.Omie.AppSecret = redacted
			}
			if cfg.Acquirer.ApiKey != "" {
				cfg.Acquirer.ApiKey = redacted
			}
			if cfg.Server.SecretKey != "" {
				cfg.Server.SecretKey = redacted
			}

			data, err := json.MarshalIndent(cfg, "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
