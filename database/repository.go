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
	"time"

	"github.com/blnkfinance/conciliator/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	omieAccount // ERP bank account mirror
	account     // acquirer account configuration
	transaction // reconciliation units and their propagation flags
}

type omieAccount interface {
	UpsertOmieAccount(ctx context.Context, acc model.OmieAccount) (*model.OmieAccount, error)
	GetOmieAccountByOmieID(ctx context.Context, omieID int64) (*model.OmieAccount, error)
	GetAllOmieAccounts(ctx context.Context) ([]model.OmieAccount, error)
}

type account interface {
	GetAccountByOrigin(ctx context.Context, omieAccountID string) (*model.Account, error)
	GetInstallment(ctx context.Context, accountID string, number int) (*model.Installment, error)
}

// transaction exposes no operation that writes a propagation flag back to false.
type transaction interface {
	GetExistingOmieIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	BulkInsertTransactions(ctx context.Context, txns []*model.Transaction) (int, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetPendingTransactions(ctx context.Context, today, cutoff time.Time) ([]*model.Transaction, error)
	GetUnsettledTransactions(ctx context.Context, cutoff time.Time) ([]*model.Transaction, error)
	BulkUpdateReconciliation(ctx context.Context, txns []*model.Transaction) error
	MarkReceiptReleased(ctx context.Context, id string) error
	MarkFeeLaunched(ctx context.Context, id string) error
	MarkValueTransferred(ctx context.Context, id string) error
	UpdateExpectedDate(ctx context.Context, id string, date time.Time) error
}
