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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/database/mocks"
	"github.com/blnkfinance/conciliator/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wacul/ptr"
)

var (
	testNow    = time.Date(2024, 12, 15, 10, 30, 0, 0, time.UTC)
	testToday  = time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)
	testCutoff = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
)

type mockERP struct {
	mock.Mock
}

func (m *mockERP) ListTransactions(ctx context.Context, from, to time.Time) ([]model.ERPTransactionSummary, error) {
	args := m.Called(ctx, from, to)
	summaries, _ := args.Get(0).([]model.ERPTransactionSummary)
	return summaries, args.Error(1)
}

func (m *mockERP) GetTransactionDetail(ctx context.Context, ledgerID int64) (*model.ERPTransactionDetail, error) {
	args := m.Called(ctx, ledgerID)
	detail, _ := args.Get(0).(*model.ERPTransactionDetail)
	return detail, args.Error(1)
}

func (m *mockERP) ReleaseReceipt(ctx context.Context, release model.ReceiptRelease) error {
	return m.Called(ctx, release).Error(0)
}

func (m *mockERP) LaunchFee(ctx context.Context, fee model.FeeLaunch) error {
	return m.Called(ctx, fee).Error(0)
}

func (m *mockERP) TransferValue(ctx context.Context, transfer model.ValueTransfer) error {
	return m.Called(ctx, transfer).Error(0)
}

func (m *mockERP) ListAccounts(ctx context.Context) ([]model.ERPAccount, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]model.ERPAccount)
	return accounts, args.Error(1)
}

func (m *mockERP) ListLaunchedCodes(ctx context.Context, since time.Time) (map[string]bool, error) {
	args := m.Called(ctx, since)
	codes, _ := args.Get(0).(map[string]bool)
	return codes, args.Error(1)
}

type mockAcquirer struct {
	mock.Mock
}

func (m *mockAcquirer) GetPayables(ctx context.Context, referenceID string) ([]model.Payable, error) {
	args := m.Called(ctx, referenceID)
	payables, _ := args.Get(0).([]model.Payable)
	return payables, args.Error(1)
}

type testEnv struct {
	c        *Conciliator
	ds       *mocks.MockDataSource
	erp      *mockERP
	acquirer *mockAcquirer
	redis    *miniredis.Miniredis
}

func testConfig(redisAddr string) *config.Configuration {
	return &config.Configuration{
		ProjectName: "Conciliator",
		Redis:       config.RedisConfig{Dns: redisAddr},
		Omie:        config.OmieConfig{PageSize: 20, Workers: 4},
		Acquirer:    config.AcquirerConfig{Name: "pagarme", Workers: 3},
		Reconciliation: config.ReconciliationConfig{
			CutoffDate:       "2024-11-01",
			Cutoff:           testCutoff,
			Tolerance:        0.0005,
			FeeCategory:      "2.01.98",
			FeeDocumentType:  "TAX",
			FeeProject:       77,
			FeeDepartment:    "FIN",
			TransferCategory: "1.99.01",
		},
		Jobs: config.JobsConfig{Queue: "conciliator_jobs", LockTimeoutSec: 60, Concurrency: 1},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	config.MockConfig(testConfig(mr.Addr()))

	env := &testEnv{
		ds:       &mocks.MockDataSource{},
		erp:      &mockERP{},
		acquirer: &mockAcquirer{},
		redis:    mr,
	}
	c, err := NewConciliator(env.ds,
		WithERPGateway(env.erp),
		WithSettlementClient(env.acquirer),
		WithRedis(client),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	env.c = c
	return env
}

func originAccount(withDestiny bool) *model.Account {
	acc := &model.Account{
		ID:                "acc_1",
		AccountNumber:     "0001",
		OmieAccountOrigin: "oma_origin",
		OriginOmieID:      100,
		Acquirer:          "pagarme",
		DaysToReceive:     30,
		Installments: []model.Installment{
			{ID: "ins_1", AccountID: "acc_1", InstallmentNumber: 1, Fee: 5},
			{ID: "ins_2", AccountID: "acc_1", InstallmentNumber: 2, Fee: 6},
		},
	}
	if withDestiny {
		acc.OmieAccountDestiny = ptr.String("oma_destiny")
		acc.DestinyOmieID = ptr.Int64(200)
	}
	return acc
}

// pendingTransaction is the 1000 / 5% transaction most scenarios start from.
func pendingTransaction(id string, codIDOmie int64, tid, installment string, account *model.Account) *model.Transaction {
	return &model.Transaction{
		ID:                     id,
		AccountID:              account.ID,
		CodIDOmie:              codIDOmie,
		TID:                    tid,
		Installment:            installment,
		ExpectedValue:          1000,
		Fee:                    50,
		Balance:                950,
		ExpectedDate:           time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC),
		AccountsReceivableNote: "pedido 42",
		DocumentType:           model.DocumentTypeCredit,
		Account:                account,
	}
}

func paidPayable(tid string, installment int, amount, fee float64, day int) model.Payable {
	return model.Payable{
		ID:                tid + "-p",
		TransactionID:     tid,
		InstallmentNumber: installment,
		Status:            model.PayableStatusPaid,
		Amount:            amount,
		Fee:               fee,
		PaymentDate:       time.Date(2024, 12, day, 0, 0, 0, 0, time.UTC),
	}
}
