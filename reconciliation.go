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
	"math"
	"time"

	"github.com/blnkfinance/conciliator/internal/acquirer"
	"github.com/blnkfinance/conciliator/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// ReconciliationResult counts what one reconciliation run classified and propagated.
type ReconciliationResult struct {
	Pending           int               `json:"pending"`
	Classified        int               `json:"classified"`
	ReceivedInFull    int               `json:"received_in_full"`
	ReceivedPartially int               `json:"received_partially"`
	Propagation       PropagationResult `json:"propagation"`
}

// Classification is the acquirer side of a transaction after comparing it with the
// expected balance.
type Classification struct {
	ReceivedValue   float64
	AcquirerFee     float64
	ValueDifference float64
	Status          string
}

// AggregatePayables sums the paid, positive payables of one installment. The payment date
// is the latest among them. The result does not depend on the order of payables.
//
// Parameters:
// - payables []model.Payable: The payables the acquirer returned for one transaction id.
// - installment int: The installment number to aggregate.
//
// Returns:
// - model.SettlementAggregate: The received and fee sums and the latest payment date.
func AggregatePayables(payables []model.Payable, installment int) model.SettlementAggregate {
	received := decimal.Zero
	fee := decimal.Zero
	var agg model.SettlementAggregate

	for _, p := range payables {
		if p.InstallmentNumber != installment || p.Status != model.PayableStatusPaid || p.Amount <= 0 {
			continue
		}
		agg.Count++
		received = received.Add(decimal.NewFromFloat(p.Amount))
		fee = fee.Add(decimal.NewFromFloat(p.Fee))
		if !p.PaymentDate.IsZero() && (agg.PaymentDate == nil || p.PaymentDate.After(*agg.PaymentDate)) {
			date := p.PaymentDate
			agg.PaymentDate = &date
		}
	}

	agg.Received, _ = received.Float64()
	agg.Fee, _ = fee.Float64()
	return agg
}

// ClassifySettlement compares the net amount the acquirer paid with the expected balance.
// Differences within tolerance × received count as received in full.
// Parameters:
// - balance: The expected net amount of the transaction.
// - receivedSum: The gross amount the acquirer paid.
// - feeSum: The fees the acquirer withheld.
// - tolerance: The relative difference still counted as received in full.
// Returns:
// - Classification: The received value, fee, value difference and status.
func ClassifySettlement(balance, receivedSum, feeSum, tolerance float64) Classification {
	value := model.RoundMoney(receivedSum)
	fee := model.RoundMoney(feeSum)
	difference := model.SubMoney(balance, model.SubMoney(value, fee))

	status := model.StatusReceivedPartially
	if math.Abs(difference) <= tolerance*value {
		status = model.StatusReceivedInFull
	}

	return Classification{
		ReceivedValue:   value,
		AcquirerFee:     fee,
		ValueDifference: difference,
		Status:          status,
	}
}

// ReconcileTransactions matches every pending transaction with the acquirer payables of its
// installment, records the outcome and then propagates it to the ERP. Transactions the
// acquirer has not paid yet are left untouched.
//
// Parameters:
// - ctx context.Context: The context for the operation.
//
// Returns:
// - ReconciliationResult: The pending and classified counts, with the propagation outcome.
// - error: An error if the pending transactions could not be read or the outcome could not be stored.
func (c *Conciliator) ReconcileTransactions(ctx context.Context) (ReconciliationResult, error) {
	ctx, span := tracer.Start(ctx, "ReconcileTransactions")
	defer span.End()

	var result ReconciliationResult
	log := logrus.WithField("job", JobReconciliation)

	pending, err := c.datasource.GetPendingTransactions(ctx, c.today(), c.config.Reconciliation.Cutoff)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	result.Pending = len(pending)
	if len(pending) == 0 {
		log.Info("no pending transactions")
		return result, nil
	}

	payables := c.fetchPayables(ctx, pending)

	classified := make([]*model.Transaction, 0, len(pending))
	for i, txn := range pending {
		if c.classify(txn, payables[i]) {
			classified = append(classified, txn)
			if *txn.Status == model.StatusReceivedInFull {
				result.ReceivedInFull++
			} else {
				result.ReceivedPartially++
			}
		}
	}
	result.Classified = len(classified)
	span.SetAttributes(attribute.Int("pending", result.Pending), attribute.Int("classified", result.Classified))

	if err := c.datasource.BulkUpdateReconciliation(ctx, classified); err != nil {
		span.RecordError(err)
		return result, err
	}

	result.Propagation = c.PropagateSettlement(ctx, classified)

	log.WithFields(logrus.Fields{
		"pending":            result.Pending,
		"classified":         result.Classified,
		"received_in_full":   result.ReceivedInFull,
		"received_partially": result.ReceivedPartially,
	}).Info("reconciliation finished")
	return result, nil
}

// fetchPayables loads the payables of every transaction through a bounded pool and a cache
// scoped to this call, so installments sharing a reference cost one request.
func (c *Conciliator) fetchPayables(ctx context.Context, txns []*model.Transaction) [][]model.Payable {
	cache := acquirer.NewPayableCache(c.acquirer)
	payables := make([][]model.Payable, len(txns))

	g := new(errgroup.Group)
	g.SetLimit(c.config.Acquirer.Workers)
	for i, txn := range txns {
		if txn.TID == "" {
			continue
		}
		i, txn := i, txn
		g.Go(func() error {
			p, err := cache.GetPayables(ctx, txn.TID)
			if err != nil {
				logrus.WithFields(logrus.Fields{"transaction": txn.ID, "tid": txn.TID}).
					WithError(err).Warn("failed to fetch acquirer payables")
				return nil
			}
			payables[i] = p
			return nil
		})
	}
	_ = g.Wait()

	return payables
}

// classify records the acquirer side on txn and reports whether there was anything to record.
func (c *Conciliator) classify(txn *model.Transaction, payables []model.Payable) bool {
	number, err := txn.InstallmentNumber()
	if err != nil {
		logrus.WithField("transaction", txn.ID).WithError(err).Warn("cannot reconcile transaction")
		return false
	}

	agg := AggregatePayables(payables, number)
	if agg.Count == 0 || agg.Received <= 0 {
		return false
	}

	cls := ClassifySettlement(txn.Balance, agg.Received, agg.Fee, c.config.Reconciliation.Tolerance)
	txn.ReceivedValue = ptr.Float64(cls.ReceivedValue)
	txn.AcquirerFee = ptr.Float64(cls.AcquirerFee)
	txn.ValueDifference = ptr.Float64(cls.ValueDifference)
	txn.Status = ptr.String(cls.Status)
	if agg.PaymentDate != nil {
		paid := agg.PaymentDate.UTC()
		txn.PaymentDate = &paid
	} else {
		txn.PaymentDate = nil
	}
	return true
}

// paymentDateOrToday is the date ERP entries are booked on.
func (c *Conciliator) paymentDateOrToday(txn *model.Transaction) time.Time {
	if txn.PaymentDate != nil && !txn.PaymentDate.IsZero() {
		return *txn.PaymentDate
	}
	return c.today()
}
