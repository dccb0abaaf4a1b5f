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
	"strings"
	"time"

	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/model"
)

// UpsertOmieAccount mirrors an ERP bank account. A resync of a known omie_id only refreshes
// its description.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - acc model.OmieAccount: The account to write. Its ID is generated when empty.
//
// Returns:
// - *model.OmieAccount: The stored account.
// - error: An error if the write failed.
func (d Datasource) UpsertOmieAccount(ctx context.Context, acc model.OmieAccount) (*model.OmieAccount, error) {
	ctx, span := tracer.Start(ctx, "Upserting omie account")
	defer span.End()

	acc.Description = strings.TrimSpace(acc.Description)
	if acc.Description == "" {
		acc.Description = model.DefaultOmieAccountDescription
	}
	if acc.ID == "" {
		acc.ID = model.GenerateUUIDWithSuffix("oma")
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}

	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO conciliator.omie_accounts (id, omie_id, description, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (omie_id) DO UPDATE SET description = EXCLUDED.description
		RETURNING id, created_at
	`, acc.ID, acc.OmieID, acc.Description, acc.CreatedAt).Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, fmt.Sprintf("failed to upsert omie account %d", acc.OmieID), err)
	}

	return &acc, nil
}

// GetOmieAccountByOmieID resolves the local mirror of an ERP bank account.
func (d Datasource) GetOmieAccountByOmieID(ctx context.Context, omieID int64) (*model.OmieAccount, error) {
	ctx, span := tracer.Start(ctx, "Fetching omie account by omie id")
	defer span.End()

	cacheKey := fmt.Sprintf("omie_account:omie_id:%d", omieID)
	var cachedAccount model.OmieAccount
	if d.cached(ctx, cacheKey, &cachedAccount) && cachedAccount.ID != "" {
		return &cachedAccount, nil
	}

	acc := model.OmieAccount{}
	err := d.Conn.QueryRowContext(ctx, `
		SELECT id, omie_id, description, created_at
		FROM conciliator.omie_accounts
		WHERE omie_id = $1
	`, omieID).Scan(&acc.ID, &acc.OmieID, &acc.Description, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("omie account %d not found", omieID), nil)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to fetch omie account", err)
	}

	d.cache(ctx, cacheKey, acc)
	return &acc, nil
}

// GetAllOmieAccounts returns every mirrored ERP bank account.
func (d Datasource) GetAllOmieAccounts(ctx context.Context) ([]model.OmieAccount, error) {
	ctx, span := tracer.Start(ctx, "Fetching all omie accounts")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT id, omie_id, description, created_at
		FROM conciliator.omie_accounts
		ORDER BY omie_id
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to list omie accounts", err)
	}
	defer rows.Close()

	accounts := []model.OmieAccount{}
	for rows.Next() {
		acc := model.OmieAccount{}
		if err := rows.Scan(&acc.ID, &acc.OmieID, &acc.Description, &acc.CreatedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to scan omie account", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "error occurred while iterating over omie accounts", err)
	}

	return accounts, nil
}
