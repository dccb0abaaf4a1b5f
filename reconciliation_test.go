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
	"testing"
	"time"

	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAggregatePayables(t *testing.T) {
	payables := []model.Payable{
		paidPayable("tid-1", 1, 480.10, 5.05, 3),
		paidPayable("tid-1", 1, 479.90, 4.95, 9),
		paidPayable("tid-1", 2, 500, 5, 20),
		{TransactionID: "tid-1", InstallmentNumber: 1, Status: "waiting_funds", Amount: 100, Fee: 1},
		{TransactionID: "tid-1", InstallmentNumber: 1, Status: model.PayableStatusPaid, Amount: -30, Fee: 0},
	}

	agg := AggregatePayables(payables, 1)
	assert.Equal(t, 2, agg.Count)
	assert.Equal(t, 960.0, agg.Received)
	assert.Equal(t, 10.0, agg.Fee)
	require.NotNil(t, agg.PaymentDate)
	assert.Equal(t, time.Date(2024, 12, 9, 0, 0, 0, 0, time.UTC), *agg.PaymentDate)

	reversed := make([]model.Payable, len(payables))
	for i, p := range payables {
		reversed[len(payables)-1-i] = p
	}
	assert.Equal(t, agg, AggregatePayables(reversed, 1))

	none := AggregatePayables(payables, 3)
	assert.Equal(t, 0, none.Count)
	assert.Nil(t, none.PaymentDate)
}

func TestClassifySettlement(t *testing.T) {
	tests := []struct {
		name       string
		balance    float64
		received   float64
		fee        float64
		difference float64
		status     string
	}{
		{"net short of balance", 950, 950, 10, 10, model.StatusReceivedPartially},
		{"net equals balance", 950, 960, 10, 0, model.StatusReceivedInFull},
		{"within tolerance", 950, 950.40, 0, -0.40, model.StatusReceivedInFull},
		{"over tolerance", 950, 951, 0, -1, model.StatusReceivedPartially},
		{"rounds to cents", 119.51, 123.454, 3.944, 0, model.StatusReceivedInFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := ClassifySettlement(tt.balance, tt.received, tt.fee, 0.0005)
			assert.Equal(t, tt.difference, cls.ValueDifference)
			assert.Equal(t, tt.status, cls.Status)
			assert.Equal(t, model.RoundMoney(tt.received), cls.ReceivedValue)
			assert.Equal(t, model.RoundMoney(tt.fee), cls.AcquirerFee)
		})
	}
}

// expectFlagWrites lets every propagation checkpoint succeed.
func (env *testEnv) expectFlagWrites() {
	env.ds.On("MarkReceiptReleased", mock.Anything, mock.Anything).Return(nil)
	env.ds.On("MarkFeeLaunched", mock.Anything, mock.Anything).Return(nil)
	env.ds.On("MarkValueTransferred", mock.Anything, mock.Anything).Return(nil)
}

func TestReconcileTransactions_ClassifiesAndPropagates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := originAccount(false)

	full := pendingTransaction("txn_full", 11, "tid-full", "001/001", account)
	partial := pendingTransaction("txn_partial", 12, "tid-partial", "001/001", account)
	unpaid := pendingTransaction("txn_unpaid", 13, "tid-unpaid", "001/001", account)

	env.ds.On("GetPendingTransactions", mock.Anything, testToday, testCutoff).
		Return([]*model.Transaction{full, partial, unpaid}, nil)
	env.acquirer.On("GetPayables", mock.Anything, "tid-full").Return([]model.Payable{paidPayable("tid-full", 1, 960, 10, 12)}, nil)
	env.acquirer.On("GetPayables", mock.Anything, "tid-partial").Return([]model.Payable{paidPayable("tid-partial", 1, 950, 10, 13)}, nil)
	env.acquirer.On("GetPayables", mock.Anything, "tid-unpaid").
		Return([]model.Payable{{TransactionID: "tid-unpaid", InstallmentNumber: 1, Status: "waiting_funds", Amount: 960}}, nil)

	var updated []*model.Transaction
	env.ds.On("BulkUpdateReconciliation", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { updated = args.Get(1).([]*model.Transaction) }).
		Return(nil)
	env.erp.On("ReleaseReceipt", mock.Anything, mock.Anything).Return(nil)
	env.erp.On("LaunchFee", mock.Anything, mock.Anything).Return(nil)
	env.expectFlagWrites()

	result, err := env.c.ReconcileTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Pending)
	assert.Equal(t, 2, result.Classified)
	assert.Equal(t, 1, result.ReceivedInFull)
	assert.Equal(t, 1, result.ReceivedPartially)
	assert.Equal(t, PropagationResult{Released: 2, FeesLaunched: 2}, result.Propagation)

	require.Len(t, updated, 2)
	assert.Equal(t, model.StatusReceivedInFull, *full.Status)
	assert.Equal(t, 0.0, *full.ValueDifference)
	assert.Equal(t, time.Date(2024, 12, 12, 0, 0, 0, 0, time.UTC), *full.PaymentDate)
	assert.Equal(t, model.StatusReceivedPartially, *partial.Status)
	assert.Equal(t, 10.0, *partial.ValueDifference)
	assert.Equal(t, 950.0, *partial.ReceivedValue)

	assert.Nil(t, unpaid.ReceivedValue)
	assert.Nil(t, unpaid.Status)
	assert.False(t, unpaid.OmieReceiptReleased)
	env.ds.AssertNotCalled(t, "MarkReceiptReleased", mock.Anything, "txn_unpaid")
	env.erp.AssertNotCalled(t, "TransferValue", mock.Anything, mock.Anything)
}

func TestReconcileTransactions_SharedReferenceFetchedOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := originAccount(false)
	account.Settle = true

	first := pendingTransaction("txn_1", 21, "tid-shared", "001/002", account)
	second := pendingTransaction("txn_2", 22, "tid-shared", "002/002", account)
	second.Fee, second.Balance = 60, 940

	env.ds.On("GetPendingTransactions", mock.Anything, testToday, testCutoff).
		Return([]*model.Transaction{first, second}, nil)
	env.acquirer.On("GetPayables", mock.Anything, "tid-shared").Return([]model.Payable{
		paidPayable("tid-shared", 1, 1000, 50, 5),
		paidPayable("tid-shared", 2, 1000, 60, 10),
	}, nil).Once()
	env.ds.On("BulkUpdateReconciliation", mock.Anything, mock.Anything).Return(nil)
	env.erp.On("LaunchFee", mock.Anything, mock.Anything).Return(nil)
	env.expectFlagWrites()

	result, err := env.c.ReconcileTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ReceivedInFull)
	env.acquirer.AssertNumberOfCalls(t, "GetPayables", 1)

	assert.Equal(t, 50.0, *first.AcquirerFee)
	assert.Equal(t, 60.0, *second.AcquirerFee)
	// settle accounts never get their receipt released by us
	env.erp.AssertNotCalled(t, "ReleaseReceipt", mock.Anything, mock.Anything)
	env.erp.AssertNumberOfCalls(t, "LaunchFee", 2)
}

func TestReconcileTransactions_AcquirerFailureLeavesTransactionPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn := pendingTransaction("txn_1", 31, "tid-1", "001/001", originAccount(false))
	env.ds.On("GetPendingTransactions", mock.Anything, testToday, testCutoff).Return([]*model.Transaction{txn}, nil)
	env.acquirer.On("GetPayables", mock.Anything, "tid-1").
		Return(nil, apierror.NewAPIError(apierror.ErrUpstreamUnavailable, "acquirer down", nil))
	env.ds.On("BulkUpdateReconciliation", mock.Anything, []*model.Transaction{}).Return(nil)

	result, err := env.c.ReconcileTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Classified)
	assert.Nil(t, txn.ReceivedValue)
	env.erp.AssertNotCalled(t, "ReleaseReceipt", mock.Anything, mock.Anything)
}

func TestReconcileTransactions_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	txn := pendingTransaction("txn_1", 41, "tid-1", "001/001", originAccount(false))
	env.ds.On("GetPendingTransactions", mock.Anything, testToday, testCutoff).Return([]*model.Transaction{txn}, nil)
	env.acquirer.On("GetPayables", mock.Anything, "tid-1").Return([]model.Payable{paidPayable("tid-1", 1, 960, 10, 12)}, nil)
	env.ds.On("BulkUpdateReconciliation", mock.Anything, mock.Anything).Return(errors.New("deadlock detected"))

	_, err := env.c.ReconcileTransactions(ctx)
	assert.EqualError(t, err, "deadlock detected")
	env.erp.AssertNotCalled(t, "ReleaseReceipt", mock.Anything, mock.Anything)
	env.erp.AssertNotCalled(t, "LaunchFee", mock.Anything, mock.Anything)
}

func TestReconcileTransactions_NothingPending(t *testing.T) {
	env := newTestEnv(t)

	env.ds.On("GetPendingTransactions", mock.Anything, testToday, testCutoff).Return([]*model.Transaction{}, nil)

	result, err := env.c.ReconcileTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconciliationResult{}, result)
	env.acquirer.AssertNotCalled(t, "GetPayables", mock.Anything, mock.Anything)
}
