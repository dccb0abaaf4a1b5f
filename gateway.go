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
	"time"

	"github.com/blnkfinance/conciliator/internal/acquirer"
	"github.com/blnkfinance/conciliator/internal/omie"
	"github.com/blnkfinance/conciliator/model"
)

// ERPGateway is the subset of the ERP API the engine drives.
type ERPGateway interface {
	ListTransactions(ctx context.Context, from, to time.Time) ([]model.ERPTransactionSummary, error)
	GetTransactionDetail(ctx context.Context, ledgerID int64) (*model.ERPTransactionDetail, error)
	ReleaseReceipt(ctx context.Context, release model.ReceiptRelease) error
	LaunchFee(ctx context.Context, fee model.FeeLaunch) error
	TransferValue(ctx context.Context, transfer model.ValueTransfer) error
	ListAccounts(ctx context.Context) ([]model.ERPAccount, error)
	ListLaunchedCodes(ctx context.Context, since time.Time) (map[string]bool, error)
}

// SettlementClient lists the payables an acquirer released for a transaction reference.
type SettlementClient interface {
	GetPayables(ctx context.Context, referenceID string) ([]model.Payable, error)
}

var (
	_ ERPGateway       = (*omie.Client)(nil)
	_ SettlementClient = (*acquirer.Client)(nil)
	_ SettlementClient = (*acquirer.PayableCache)(nil)
)
