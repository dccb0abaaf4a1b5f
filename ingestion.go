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
	"errors"
	"fmt"
	"time"

	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// errBeforeCutoff marks a receivable whose due date precedes the reconciliation cutoff.
var errBeforeCutoff = errors.New("expected date precedes the cutoff")

// IngestionResult counts what one ingestion run saw and did.
type IngestionResult struct {
	Listed  int `json:"listed"`
	New     int `json:"new"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// IngestTransactions pulls the ERP receivables registered between from and to and stores
// the ones not seen before. Rows that cannot be resolved are skipped; only a failing store
// write aborts the run.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - from time.Time: The first registration date of the window.
// - to time.Time: The last registration date of the window.
//
// Returns:
// - IngestionResult: The listed, new, created and skipped counts.
// - error: An error if the stored ids could not be read or the insert failed.
func (c *Conciliator) IngestTransactions(ctx context.Context, from, to time.Time) (IngestionResult, error) {
	ctx, span := tracer.Start(ctx, "IngestTransactions")
	defer span.End()

	var result IngestionResult
	log := logrus.WithFields(logrus.Fields{
		"job":  JobIngestion,
		"from": from.Format(time.DateOnly),
		"to":   to.Format(time.DateOnly),
	})

	summaries, err := c.erp.ListTransactions(ctx, from, to)
	if err != nil {
		// pages fetched before the failure are still ingested
		log.WithError(err).Warn("erp listing ended early")
	}

	ids := filterLedgerIDs(summaries)
	result.Listed = len(ids)
	if len(ids) == 0 {
		log.Info("no erp receivables to ingest")
		return result, nil
	}

	existing, err := c.datasource.GetExistingOmieIDs(ctx, ids)
	if err != nil {
		return result, err
	}
	newIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !existing[id] {
			newIDs = append(newIDs, id)
		}
	}
	result.New = len(newIDs)
	span.SetAttributes(attribute.Int("listed", result.Listed), attribute.Int("new", result.New))

	details := c.fetchDetails(ctx, newIDs)

	txns := make([]*model.Transaction, 0, len(details))
	for i, detail := range details {
		if detail == nil {
			result.Skipped++
			continue
		}
		txn, err := c.buildTransaction(ctx, detail)
		if err != nil {
			result.Skipped++
			entry := log.WithField("cod_id_omie", newIDs[i])
			if errors.Is(err, errBeforeCutoff) {
				entry.Debug(err)
			} else {
				entry.WithError(err).Warn("skipping erp receivable")
			}
			continue
		}
		txns = append(txns, txn)
	}

	created, err := c.datasource.BulkInsertTransactions(ctx, txns)
	if err != nil {
		span.RecordError(err)
		return result, err
	}
	result.Created = created

	log.WithFields(logrus.Fields{
		"listed":  result.Listed,
		"new":     result.New,
		"created": result.Created,
		"skipped": result.Skipped,
	}).Info("ingestion finished")
	return result, nil
}

// filterLedgerIDs keeps card and PIX receivables, once each, in listing order.
func filterLedgerIDs(summaries []model.ERPTransactionSummary) []int64 {
	seen := make(map[int64]bool, len(summaries))
	ids := make([]int64, 0, len(summaries))
	for _, s := range summaries {
		if _, ok := model.DocumentTypeFromERP(s.DocumentType); !ok {
			continue
		}
		if seen[s.LedgerID] {
			continue
		}
		seen[s.LedgerID] = true
		ids = append(ids, s.LedgerID)
	}
	return ids
}

// fetchDetails loads the ERP detail of every id through a bounded pool. The result is
// index-aligned with ids; a failed fetch leaves a nil entry.
func (c *Conciliator) fetchDetails(ctx context.Context, ids []int64) []*model.ERPTransactionDetail {
	details := make([]*model.ERPTransactionDetail, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(c.config.Omie.Workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			detail, err := c.erp.GetTransactionDetail(ctx, id)
			if err != nil {
				logrus.WithField("cod_id_omie", id).WithError(err).Warn("failed to fetch erp receivable detail")
				return nil
			}
			details[i] = detail
			return nil
		})
	}
	_ = g.Wait()

	return details
}

// buildTransaction resolves the account and installment of an ERP receivable and computes
// its expected fee, balance and due date.
func (c *Conciliator) buildTransaction(ctx context.Context, detail *model.ERPTransactionDetail) (*model.Transaction, error) {
	if err := detail.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrDataInconsistency, fmt.Sprintf("invalid erp receivable %d", detail.LedgerID), err)
	}
	documentType, _ := model.DocumentTypeFromERP(detail.DocumentType)

	account, err := c.resolveAccount(ctx, detail.AccountID)
	if err != nil {
		return nil, err
	}

	number, _, err := model.ParseInstallmentLabel(detail.InstallmentLabel)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrDataInconsistency, fmt.Sprintf("erp receivable %d", detail.LedgerID), err)
	}

	installment, ok := account.FindInstallment(number)
	if !ok {
		// the cached account may predate a newly configured installment
		installment, err = c.datasource.GetInstallment(ctx, account.ID, number)
		if err != nil {
			return nil, err
		}
	}

	expectedDate := c.expectedDate(detail.RegistrationDate, account.DaysToReceive, number)
	if cutoff := c.config.Reconciliation.Cutoff; !cutoff.IsZero() && expectedDate.Before(cutoff) {
		return nil, fmt.Errorf("erp receivable %d due %s: %w", detail.LedgerID, expectedDate.Format(time.DateOnly), errBeforeCutoff)
	}

	fee := model.PercentOf(detail.GrossAmount, installment.Fee)
	return &model.Transaction{
		AccountID:              account.ID,
		CodIDOmie:              detail.LedgerID,
		AccountName:            detail.CustomerName,
		TID:                    detail.TID,
		Installment:            detail.InstallmentLabel,
		InvoiceNumber:          detail.InvoiceNumber,
		ExpectedValue:          model.RoundMoney(detail.GrossAmount),
		Fee:                    fee,
		Balance:                model.SubMoney(detail.GrossAmount, fee),
		ExpectedDate:           expectedDate,
		AccountsReceivableNote: detail.Note,
		DocumentType:           documentType,
	}, nil
}

// resolveAccount maps an ERP bank account id to the local account whose origin it is.
func (c *Conciliator) resolveAccount(ctx context.Context, erpAccountID int64) (*model.Account, error) {
	omieAccount, err := c.datasource.GetOmieAccountByOmieID(ctx, erpAccountID)
	if err != nil {
		return nil, err
	}
	return c.datasource.GetAccountByOrigin(ctx, omieAccount.ID)
}

// expectedDate is the registration date plus the account's settlement delay, shifted by the
// configured spacing for every installment after the first.
func (c *Conciliator) expectedDate(registration time.Time, daysToReceive, installment int) time.Time {
	days := daysToReceive + (installment-1)*c.config.Reconciliation.InstallmentSpacingDays
	return model.Date(registration).AddDate(0, 0, days)
}
