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

// SyncFeeFlags marks the fee and transfer flags of pending transactions whose ERP entries
// already exist, recovering from runs that stopped between the ERP call and the flag write.
func (c *Conciliator) SyncFeeFlags(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "SyncFeeFlags")
	defer span.End()

	cutoff := c.config.Reconciliation.Cutoff
	codes, err := c.erp.ListLaunchedCodes(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	pending, err := c.datasource.GetPendingTransactions(ctx, c.today(), cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, txn := range pending {
		log := logrus.WithFields(logrus.Fields{"job": JobSyncFee, "transaction": txn.ID, "dedup_key": txn.DedupKey()})

		if !txn.OmieFeeLaunched && codes[txn.DedupKey()] {
			if err := c.datasource.MarkFeeLaunched(ctx, txn.ID); err != nil {
				log.WithError(err).Warn("failed to mark fee launched")
			} else {
				marked++
				log.Info("fee entry found in the erp, flag set")
			}
		}
		if !txn.OmieValueTransferred && txn.Account.HasDestiny() && codes[txn.TransferDedupKey()] {
			if err := c.datasource.MarkValueTransferred(ctx, txn.ID); err != nil {
				log.WithError(err).Warn("failed to mark value transferred")
			} else {
				marked++
				log.Info("transfer entry found in the erp, flag set")
			}
		}
	}
	return marked, nil
}

// SyncReceiptStatus marks the receipt of pending transactions already settled in the ERP.
// Parameters:
// - ctx context.Context: The context for the operation.
// Returns:
// - int: The number of receipts marked as released.
// - error: An error if the pending transactions could not be read.
func (c *Conciliator) SyncReceiptStatus(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "SyncReceiptStatus")
	defer span.End()

	pending, err := c.datasource.GetPendingTransactions(ctx, c.today(), c.config.Reconciliation.Cutoff)
	if err != nil {
		return 0, err
	}

	unreleased := make([]*model.Transaction, 0, len(pending))
	ids := make([]int64, 0, len(pending))
	for _, txn := range pending {
		if !txn.OmieReceiptReleased {
			unreleased = append(unreleased, txn)
			ids = append(ids, txn.CodIDOmie)
		}
	}

	details := c.fetchDetails(ctx, ids)

	marked := 0
	for i, txn := range unreleased {
		if details[i] == nil || details[i].Status != model.ERPStatusReceived {
			continue
		}
		if err := c.datasource.MarkReceiptReleased(ctx, txn.ID); err != nil {
			logrus.WithField("transaction", txn.ID).WithError(err).Warn("failed to mark receipt released")
			continue
		}
		marked++
	}

	logrus.WithFields(logrus.Fields{"job": JobSyncStatus, "checked": len(unreleased), "marked": marked}).Info("receipt status synced")
	return marked, nil
}

// SyncExpectedDates recomputes the due date of every unsettled transaction from its ERP
// registration date and rewrites the ones that moved.
func (c *Conciliator) SyncExpectedDates(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "SyncExpectedDates")
	defer span.End()

	txns, err := c.datasource.GetUnsettledTransactions(ctx, c.config.Reconciliation.Cutoff)
	if err != nil {
		return 0, err
	}

	ids := make([]int64, len(txns))
	for i, txn := range txns {
		ids[i] = txn.CodIDOmie
	}
	details := c.fetchDetails(ctx, ids)

	updated := 0
	for i, txn := range txns {
		detail := details[i]
		if detail == nil || detail.RegistrationDate.IsZero() || txn.Account == nil {
			continue
		}
		number, err := txn.InstallmentNumber()
		if err != nil {
			logrus.WithField("transaction", txn.ID).WithError(err).Warn("cannot recompute expected date")
			continue
		}

		expected := c.expectedDate(detail.RegistrationDate, txn.Account.DaysToReceive, number)
		if expected.Equal(model.Date(txn.ExpectedDate)) {
			continue
		}
		if err := c.datasource.UpdateExpectedDate(ctx, txn.ID, expected); err != nil {
			logrus.WithField("transaction", txn.ID).WithError(err).Warn("failed to update expected date")
			continue
		}
		updated++
	}

	logrus.WithFields(logrus.Fields{"job": JobSyncDates, "checked": len(txns), "updated": updated}).Info("expected dates synced")
	return updated, nil
}
