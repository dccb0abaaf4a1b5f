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

	"github.com/blnkfinance/conciliator/model"
	"github.com/sirupsen/logrus"
)

// SyncOmieAccounts mirrors the ERP bank accounts locally and returns how many were
// written. Known accounts only have their description refreshed.
//
// Parameters:
// - ctx context.Context: The context for the operation.
//
// Returns:
// - int: The number of accounts written.
// - error: An error if the ERP listing or a write failed.
func (c *Conciliator) SyncOmieAccounts(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "SyncOmieAccounts")
	defer span.End()

	accounts, err := c.erp.ListAccounts(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	synced := 0
	for _, acc := range accounts {
		_, err := c.datasource.UpsertOmieAccount(ctx, model.OmieAccount{
			OmieID:      acc.OmieID,
			Description: acc.Description,
		})
		if err != nil {
			span.RecordError(err)
			return synced, err
		}
		synced++
	}

	logrus.WithFields(logrus.Fields{"job": JobOmieAccounts, "synced": synced}).Info("erp bank accounts synced")
	return synced, nil
}
