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

	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/model"
	"github.com/wacul/ptr"
)

// accountColumns selects an account with the ERP ids of its origin and destiny. It expects
// the aliases a (accounts), o (origin) and d (destiny).
const accountColumns = `a.id, COALESCE(a.account_number, ''), a.omie_account_origin, a.omie_account_destiny,
		o.omie_id, d.omie_id, a.acquirer, a.settle, a.days_to_receive, a.created_at`

const accountJoins = `JOIN conciliator.omie_accounts o ON o.id = a.omie_account_origin
		LEFT JOIN conciliator.omie_accounts d ON d.id = a.omie_account_destiny`

// accountDest returns the scan targets matching accountColumns and a func that copies the
// nullable destiny into acc once the scan succeeded.
func accountDest(acc *model.Account) ([]interface{}, func()) {
	var destiny sql.NullString
	var destinyOmieID sql.NullInt64
	dest := []interface{}{
		&acc.ID, &acc.AccountNumber, &acc.OmieAccountOrigin, &destiny,
		&acc.OriginOmieID, &destinyOmieID, &acc.Acquirer, &acc.Settle, &acc.DaysToReceive, &acc.CreatedAt,
	}
	return dest, func() {
		if destiny.Valid {
			acc.OmieAccountDestiny = ptr.String(destiny.String)
		}
		if destinyOmieID.Valid {
			acc.DestinyOmieID = ptr.Int64(destinyOmieID.Int64)
		}
	}
}

// GetAccountByOrigin returns the account whose origin is the given omie account, with its
// installments. Results are cached for five minutes.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - omieAccountID string: The ID of the origin omie account.
//
// Returns:
// - *model.Account: The account with its installments.
// - error: NOT_FOUND if no account uses that origin, or the database error.
func (d Datasource) GetAccountByOrigin(ctx context.Context, omieAccountID string) (*model.Account, error) {
	ctx, span := tracer.Start(ctx, "Fetching account by origin")
	defer span.End()

	cacheKey := fmt.Sprintf("account:origin:%s", omieAccountID)
	var cachedAccount model.Account
	if d.cached(ctx, cacheKey, &cachedAccount) && cachedAccount.ID != "" {
		return &cachedAccount, nil
	}

	acc := &model.Account{}
	dest, finish := accountDest(acc)
	err := d.Conn.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM conciliator.accounts a
		`+accountJoins+`
		WHERE a.omie_account_origin = $1
	`, omieAccountID).Scan(dest...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("no account with origin %s", omieAccountID), nil)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to fetch account", err)
	}
	finish()

	installments, err := d.getInstallments(ctx, acc.ID)
	if err != nil {
		return nil, err
	}
	acc.Installments = installments

	d.cache(ctx, cacheKey, acc)
	return acc, nil
}

// getInstallments loads the fee table of an account ordered by installment number.
func (d Datasource) getInstallments(ctx context.Context, accountID string) ([]model.Installment, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, account_id, installment_number, fee
		FROM conciliator.installments
		WHERE account_id = $1
		ORDER BY installment_number
	`, accountID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to fetch installments", err)
	}
	defer rows.Close()

	installments := []model.Installment{}
	for rows.Next() {
		inst := model.Installment{}
		if err := rows.Scan(&inst.ID, &inst.AccountID, &inst.InstallmentNumber, &inst.Fee); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan installment", err)
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over installments", err)
	}
	return installments, nil
}

// GetInstallment resolves the fee configuration of one installment number.
// Parameters:
// - ctx: The context for the operation.
// - accountID: The ID of the account.
// - number: The installment number, starting at 1.
// Returns:
// - *model.Installment: The installment fee configuration.
// - error: NOT_FOUND if the account has no such installment.
func (d Datasource) GetInstallment(ctx context.Context, accountID string, number int) (*model.Installment, error) {
	ctx, span := tracer.Start(ctx, "Fetching installment")
	defer span.End()

	inst := &model.Installment{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, account_id, installment_number, fee
		FROM conciliator.installments
		WHERE account_id = $1 AND installment_number = $2
	`, accountID, number).Scan(&inst.ID, &inst.AccountID, &inst.InstallmentNumber, &inst.Fee)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("installment %d not configured for account %s", number, accountID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to fetch installment", err)
	}
	return inst, nil
}
