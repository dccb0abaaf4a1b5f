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
	"fmt"
	"math"
	"time"

	"github.com/blnkfinance/conciliator/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// PropagationResult counts the ERP side effects of one propagation pass.
type PropagationResult struct {
	Released     int `json:"released"`
	FeesLaunched int `json:"fees_launched"`
	Transferred  int `json:"transferred"`
	Failures     int `json:"failures"`
}

// PropagateSettlement pushes the settlement of each reconciled transaction to the ERP:
// receipt release, fee launch and value transfer, in that order. Every action runs only
// while its flag is false and the flag is persisted right after the ERP accepted it. A
// failed action is logged and left for the next run.
//
// Parameters:
// - ctx context.Context: The context for the operation. Propagation stops between
//   transactions once it is cancelled.
// - txns []*model.Transaction: Reconciled transactions with their accounts loaded.
//
// Returns:
// - PropagationResult: The count of each action done and of the failures.
func (c *Conciliator) PropagateSettlement(ctx context.Context, txns []*model.Transaction) PropagationResult {
	ctx, span := tracer.Start(ctx, "PropagateSettlement")
	defer span.End()

	var result PropagationResult
	delay := time.Duration(c.config.Reconciliation.PropagationDelayMillis) * time.Millisecond

	for i, txn := range txns {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(delay):
			}
		}
		c.propagate(ctx, txn, &result)
	}

	span.SetAttributes(
		attribute.Int("released", result.Released),
		attribute.Int("fees_launched", result.FeesLaunched),
		attribute.Int("transferred", result.Transferred),
		attribute.Int("failures", result.Failures),
	)
	return result
}

func (c *Conciliator) propagate(ctx context.Context, txn *model.Transaction, result *PropagationResult) {
	log := logrus.WithFields(logrus.Fields{
		"transaction": txn.ID,
		"cod_id_omie": txn.CodIDOmie,
		"dedup_key":   txn.DedupKey(),
	})

	if !txn.Reconciled() || txn.AcquirerFee == nil || txn.Account == nil {
		log.Warn("transaction is not reconciled, nothing to propagate")
		return
	}
	account := txn.Account
	received := *txn.ReceivedValue
	acquirerFee := *txn.AcquirerFee
	date := c.paymentDateOrToday(txn)

	if !account.Settle && !txn.OmieReceiptReleased {
		err := c.erp.ReleaseReceipt(ctx, model.ReceiptRelease{
			LedgerID:  txn.CodIDOmie,
			AccountID: account.OriginOmieID,
			Amount:    math.Min(received, txn.ExpectedValue),
			Date:      date,
			Note:      txn.AccountsReceivableNote,
		})
		if c.checkpoint(ctx, log, "receipt release", err, txn.ID, c.datasource.MarkReceiptReleased, result) {
			txn.OmieReceiptReleased = true
			result.Released++
		}
	}

	if !txn.OmieFeeLaunched {
		var err error
		if acquirerFee > 0 {
			err = c.erp.LaunchFee(ctx, model.FeeLaunch{
				DedupKey:     txn.DedupKey(),
				AccountID:    account.OriginOmieID,
				Amount:       acquirerFee,
				Date:         date,
				Category:     c.config.Reconciliation.FeeCategory,
				DocumentType: c.config.Reconciliation.FeeDocumentType,
				Note:         fmt.Sprintf("%s fee %s", account.Acquirer, txn.DedupKey()),
				Project:      c.config.Reconciliation.FeeProject,
				Department:   c.config.Reconciliation.FeeDepartment,
			})
		}
		if c.checkpoint(ctx, log, "fee launch", err, txn.ID, c.datasource.MarkFeeLaunched, result) {
			txn.OmieFeeLaunched = true
			result.FeesLaunched++
		}
	}

	if account.HasDestiny() && !txn.OmieValueTransferred {
		err := c.erp.TransferValue(ctx, model.ValueTransfer{
			DedupKey:             txn.TransferDedupKey(),
			OriginAccountID:      account.OriginOmieID,
			DestinationAccountID: *account.DestinyOmieID,
			Amount:               model.SubMoney(received, acquirerFee),
			Date:                 date,
			Category:             c.config.Reconciliation.TransferCategory,
			Note:                 fmt.Sprintf("%s settlement %s", account.Acquirer, txn.DedupKey()),
		})
		if c.checkpoint(ctx, log, "value transfer", err, txn.ID, c.datasource.MarkValueTransferred, result) {
			txn.OmieValueTransferred = true
			result.Transferred++
		}
	}
}

// checkpointTimeout bounds a flag write once it no longer follows the caller's cancellation.
const checkpointTimeout = 10 * time.Second

// checkpoint persists the flag of an action the ERP accepted. It reports whether the flag
// is now set. The write outlives a cancelled caller so that an accepted action is never
// left unflagged.
func (c *Conciliator) checkpoint(ctx context.Context, log *logrus.Entry, action string, erpErr error, id string,
	mark func(context.Context, string) error, result *PropagationResult) bool {
	if erpErr != nil {
		result.Failures++
		log.WithError(erpErr).Errorf("%s failed", action)
		return false
	}
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkpointTimeout)
	defer cancel()
	if err := mark(markCtx, id); err != nil {
		// fee and transfer entries are deduplicated by their ERP integration code on retry
		result.Failures++
		log.WithError(err).Errorf("%s done in the erp but its flag was not persisted", action)
		return false
	}
	log.Infof("%s done", action)
	return true
}
