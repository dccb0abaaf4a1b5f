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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/model"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
	"go.opentelemetry.io/otel/attribute"
)

const transactionColumns = `t.id, t.account_id, t.cod_id_omie, COALESCE(t.account_name, ''), t.tid, t.installment,
		COALESCE(t.invoice_number, ''), t.expected_value, t.fee, t.balance, t.expected_date,
		COALESCE(t.accounts_receivable_note, ''), t.document_type, t.received_value, t.acquirer_fee,
		t.value_difference, t.payment_date, t.status, t.omie_receipt_released, t.omie_fee_launched,
		t.omie_value_transferred, t.created_at`

const transactionFrom = `FROM conciliator.transactions t
		JOIN conciliator.accounts a ON a.id = t.account_id
		` + accountJoins

// pendingCondition keeps a transaction pending while one of its propagation actions can still fire.
const pendingCondition = `((NOT t.omie_receipt_released AND NOT a.settle)
			OR NOT t.omie_fee_launched
			OR (NOT t.omie_value_transferred AND a.omie_account_destiny IS NOT NULL))`

// propagation flag columns, the only values markFlag accepts.
const (
	flagReceiptReleased  = "omie_receipt_released"
	flagFeeLaunched      = "omie_fee_launched"
	flagValueTransferred = "omie_value_transferred"
)

func scanTransaction(row scanner) (*model.Transaction, error) {
	txn := &model.Transaction{Account: &model.Account{}}
	var (
		receivedValue   sql.NullFloat64
		acquirerFee     sql.NullFloat64
		valueDifference sql.NullFloat64
		paymentDate     sql.NullTime
		status          sql.NullString
	)

	accDest, finish := accountDest(txn.Account)
	dest := append([]interface{}{
		&txn.ID, &txn.AccountID, &txn.CodIDOmie, &txn.AccountName, &txn.TID, &txn.Installment,
		&txn.InvoiceNumber, &txn.ExpectedValue, &txn.Fee, &txn.Balance, &txn.ExpectedDate,
		&txn.AccountsReceivableNote, &txn.DocumentType, &receivedValue, &acquirerFee,
		&valueDifference, &paymentDate, &status, &txn.OmieReceiptReleased, &txn.OmieFeeLaunched,
		&txn.OmieValueTransferred, &txn.CreatedAt,
	}, accDest...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finish()

	if receivedValue.Valid {
		txn.ReceivedValue = ptr.Float64(receivedValue.Float64)
	}
	if acquirerFee.Valid {
		txn.AcquirerFee = ptr.Float64(acquirerFee.Float64)
	}
	if valueDifference.Valid {
		txn.ValueDifference = ptr.Float64(valueDifference.Float64)
	}
	if paymentDate.Valid {
		t := paymentDate.Time
		txn.PaymentDate = &t
	}
	if status.Valid {
		txn.Status = ptr.String(status.String)
	}
	return txn, nil
}

// GetExistingOmieIDs reports which of the given ERP ids are already stored, in one query.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - ids []int64: The ERP ledger ids to check.
//
// Returns:
// - map[int64]bool: The subset of ids already stored.
// - error: An error if the query failed.
func (d Datasource) GetExistingOmieIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	ctx, span := tracer.Start(ctx, "Fetching existing omie ids")
	defer span.End()
	span.SetAttributes(attribute.Int("ids", len(ids)))

	existing := make(map[int64]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT cod_id_omie FROM conciliator.transactions WHERE cod_id_omie = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to fetch existing omie ids", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan omie id", err)
		}
		existing[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over omie ids", err)
	}
	return existing, nil
}

// BulkInsertTransactions writes txns in one SQL transaction and returns how many rows were
// created. Rows whose cod_id_omie already exists are left as they are.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - txns []*model.Transaction: The transactions to insert.
//
// Returns:
// - int: The number of rows created.
// - error: An error if the SQL transaction could not be committed.
func (d Datasource) BulkInsertTransactions(ctx context.Context, txns []*model.Transaction) (int, error) {
	ctx, span := tracer.Start(ctx, "Bulk inserting transactions")
	defer span.End()
	span.SetAttributes(attribute.Int("transactions", len(txns)))

	if len(txns) == 0 {
		return 0, nil
	}

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	created := 0
	for _, txn := range txns {
		if txn.ID == "" {
			txn.ID = model.GenerateUUIDWithSuffix("txn")
		}
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = time.Now().UTC()
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO conciliator.transactions (
				id, account_id, cod_id_omie, account_name, tid, installment, invoice_number,
				expected_value, fee, balance, expected_date, accounts_receivable_note, document_type, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (cod_id_omie) DO NOTHING
		`, txn.ID, txn.AccountID, txn.CodIDOmie, txn.AccountName, txn.TID, txn.Installment, txn.InvoiceNumber,
			txn.ExpectedValue, txn.Fee, txn.Balance, txn.ExpectedDate, txn.AccountsReceivableNote, txn.DocumentType, txn.CreatedAt)
		if err != nil {
			span.RecordError(err)
			return 0, apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to insert transaction %d", txn.CodIDOmie), err)
		}
		if n, err := result.RowsAffected(); err == nil {
			created += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return created, nil
}

// GetTransactionByID retrieves a transaction and its account.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - id string: The ID of the transaction.
//
// Returns:
// - *model.Transaction: The transaction.
// - error: NOT_FOUND if it does not exist, or the database error.
func (d Datasource) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Fetching transaction by id")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`, `+accountColumns+`
		`+transactionFrom+`
		WHERE t.id = $1
	`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("transaction with ID '%s' not found", id), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to fetch transaction", err)
	}
	return txn, nil
}

// GetPendingTransactions returns the transactions due between cutoff and today that still
// have a propagation action left, each with its account loaded.
func (d Datasource) GetPendingTransactions(ctx context.Context, today, cutoff time.Time) ([]*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Fetching pending transactions")
	defer span.End()

	txns, err := d.queryTransactions(ctx, `t.expected_date <= $1 AND t.expected_date >= $2 AND `+pendingCondition,
		model.Date(today), model.Date(cutoff))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("pending", len(txns)))
	return txns, nil
}

// GetUnsettledTransactions is GetPendingTransactions without the upper due date bound.
func (d Datasource) GetUnsettledTransactions(ctx context.Context, cutoff time.Time) ([]*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Fetching unsettled transactions")
	defer span.End()

	txns, err := d.queryTransactions(ctx, `t.expected_date >= $1 AND `+pendingCondition, model.Date(cutoff))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return txns, nil
}

func (d Datasource) queryTransactions(ctx context.Context, where string, args ...interface{}) ([]*model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`, `+accountColumns+`
		`+transactionFrom+`
		WHERE `+where+`
		ORDER BY t.expected_date, t.cod_id_omie
	`, args...)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to fetch transactions", err)
	}
	defer rows.Close()

	txns := []*model.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan transaction", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over transactions", err)
	}
	return txns, nil
}

// BulkUpdateReconciliation records the acquirer side of txns in one SQL transaction. Only
// the received-side columns are written.
// Parameters:
// - ctx: The context for the operation.
// - txns: The transactions carrying their received value, fee, difference, status and payment date.
// Returns:
// - error: An error if any update failed; nothing is written in that case.
func (d Datasource) BulkUpdateReconciliation(ctx context.Context, txns []*model.Transaction) error {
	ctx, span := tracer.Start(ctx, "Bulk updating reconciliation")
	defer span.End()
	span.SetAttributes(attribute.Int("transactions", len(txns)))

	if len(txns) == 0 {
		return nil
	}

	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, txn := range txns {
		_, err := tx.ExecContext(ctx, `
			UPDATE conciliator.transactions
			SET received_value = $2, acquirer_fee = $3, value_difference = $4, payment_date = $5, status = $6
			WHERE id = $1
		`, txn.ID, nullFloat(txn.ReceivedValue), nullFloat(txn.AcquirerFee), nullFloat(txn.ValueDifference),
			nullTime(txn.PaymentDate), nullString(txn.Status))
		if err != nil {
			span.RecordError(err)
			return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to update reconciliation of transaction %s", txn.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}
	return nil
}

func (d Datasource) MarkReceiptReleased(ctx context.Context, id string) error {
	return d.markFlag(ctx, id, flagReceiptReleased)
}

func (d Datasource) MarkFeeLaunched(ctx context.Context, id string) error {
	return d.markFlag(ctx, id, flagFeeLaunched)
}

func (d Datasource) MarkValueTransferred(ctx context.Context, id string) error {
	return d.markFlag(ctx, id, flagValueTransferred)
}

// markFlag sets one propagation flag. Flags only ever move to true, and setting a flag
// that is already true succeeds without touching the row.
//
// Parameters:
// - ctx: Context for the operation.
// - id: The transaction ID.
// - column: One of the three propagation flag columns.
//
// Returns:
// - error: NOT_FOUND if the transaction does not exist, or the database error.
func (d Datasource) markFlag(ctx context.Context, id, column string) error {
	ctx, span := tracer.Start(ctx, "Marking "+column)
	defer span.End()

	switch column {
	case flagReceiptReleased, flagFeeLaunched, flagValueTransferred:
	default:
		return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("unknown propagation flag %s", column), nil)
	}

	result, err := d.Conn.ExecContext(ctx,
		`UPDATE conciliator.transactions SET `+column+` = TRUE WHERE id = $1 AND NOT `+column, id)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to set %s on transaction %s", column, id), err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		// either the flag was already set or the transaction does not exist
		var exists bool
		err := d.Conn.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM conciliator.transactions WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			span.RecordError(err)
			return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to check transaction %s", id), err)
		}
		if !exists {
			return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("transaction with ID '%s' not found", id), nil)
		}
		logrus.WithFields(logrus.Fields{"transaction": id, "flag": column}).Debug("propagation flag already set")
		return nil
	}

	logrus.WithFields(logrus.Fields{"transaction": id, "flag": column}).Debug("propagation flag set")
	return nil
}

// UpdateExpectedDate rewrites the due date of a transaction after an ERP resync.
func (d Datasource) UpdateExpectedDate(ctx context.Context, id string, date time.Time) error {
	ctx, span := tracer.Start(ctx, "Updating expected date")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE conciliator.transactions SET expected_date = $2 WHERE id = $1
	`, id, model.Date(date))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to update expected date of transaction %s", id), err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("transaction with ID '%s' not found", id), nil)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
