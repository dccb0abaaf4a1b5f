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

func TestSyncFeeFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	launched := pendingTransaction("txn_launched", 1, "tid-a", "001/001", originAccount(true))
	transferred := pendingTransaction("txn_transferred", 2, "tid-b", "001/001", originAccount(true))
	transferred.OmieFeeLaunched = true
	noDestiny := pendingTransaction("txn_no_destiny", 3, "tid-c", "001/001", originAccount(false))
	missing := pendingTransaction("txn_missing", 4, "tid-d", "001/001", originAccount(true))

	env.erp.On("ListLaunchedCodes", mock.Anything, testCutoff).Return(map[string]bool{
		"tid-a-001/001":     true,
		"tid-b-001/001":     true,
		"tid-b-001/001-TRF": true,
		"tid-c-001/001-TRF": true,
	}, nil)
	env.ds.On("GetPendingTransactions", mock.Anything, testToday, testCutoff).
		Return([]*model.Transaction{launched, transferred, noDestiny, missing}, nil)
	env.ds.On("MarkFeeLaunched", mock.Anything, "txn_launched").Return(nil)
	env.ds.On("MarkValueTransferred", mock.Anything, "txn_transferred").Return(nil)

	marked, err := env.c.SyncFeeFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
	env.ds.AssertNumberOfCalls(t, "MarkFeeLaunched", 1)
	env.ds.AssertNumberOfCalls(t, "MarkValueTransferred", 1)
	env.ds.AssertNotCalled(t, "MarkValueTransferred", mock.Anything, "txn_no_destiny")
}

func TestSyncFeeFlags_ERPFailure(t *testing.T) {
	env := newTestEnv(t)

	env.erp.On("ListLaunchedCodes", mock.Anything, testCutoff).
		Return(nil, apierror.NewAPIError(apierror.ErrUpstreamUnavailable, "failed to list erp entries on page 1", nil))

	_, err := env.c.SyncFeeFlags(context.Background())
	assert.True(t, apierror.HasCode(err, apierror.ErrUpstreamUnavailable))
	env.ds.AssertNotCalled(t, "GetPendingTransactions", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncReceiptStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	received := pendingTransaction("txn_received", 1, "tid-a", "001/001", originAccount(false))
	open := pendingTransaction("txn_open", 2, "tid-b", "001/001", originAccount(false))
	released := pendingTransaction("txn_released", 3, "tid-c", "001/001", originAccount(false))
	released.OmieReceiptReleased = true
	unreachable := pendingTransaction("txn_unreachable", 4, "tid-d", "001/001", originAccount(false))

	env.ds.On("GetPendingTransactions", mock.Anything, testToday, testCutoff).
		Return([]*model.Transaction{received, open, released, unreachable}, nil)

	receivedDetail := erpDetail(1, "001/001", 1000, registeredOn)
	receivedDetail.Status = model.ERPStatusReceived
	env.erp.On("GetTransactionDetail", mock.Anything, int64(1)).Return(receivedDetail, nil)
	env.erp.On("GetTransactionDetail", mock.Anything, int64(2)).Return(erpDetail(2, "001/001", 1000, registeredOn), nil)
	env.erp.On("GetTransactionDetail", mock.Anything, int64(4)).Return(nil, errors.New("timeout"))
	env.ds.On("MarkReceiptReleased", mock.Anything, "txn_received").Return(nil)

	marked, err := env.c.SyncReceiptStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	env.erp.AssertNotCalled(t, "GetTransactionDetail", mock.Anything, int64(3))
	env.ds.AssertNumberOfCalls(t, "MarkReceiptReleased", 1)
}

func TestSyncExpectedDates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	moved := pendingTransaction("txn_moved", 1, "tid-a", "001/001", originAccount(false))
	unchanged := pendingTransaction("txn_unchanged", 2, "tid-b", "001/001", originAccount(false))
	unchanged.ExpectedDate = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	orphan := pendingTransaction("txn_orphan", 3, "tid-c", "001/001", originAccount(false))
	orphan.Account = nil

	env.ds.On("GetUnsettledTransactions", mock.Anything, testCutoff).
		Return([]*model.Transaction{moved, unchanged, orphan}, nil)
	env.erp.On("GetTransactionDetail", mock.Anything, int64(1)).Return(erpDetail(1, "001/001", 1000, registeredOn), nil)
	env.erp.On("GetTransactionDetail", mock.Anything, int64(2)).Return(erpDetail(2, "001/001", 1000, registeredOn), nil)
	env.erp.On("GetTransactionDetail", mock.Anything, int64(3)).Return(erpDetail(3, "001/001", 1000, registeredOn), nil)
	env.ds.On("UpdateExpectedDate", mock.Anything, "txn_moved", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)).Return(nil)

	updated, err := env.c.SyncExpectedDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	env.ds.AssertNumberOfCalls(t, "UpdateExpectedDate", 1)
}

func TestSyncOmieAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.erp.On("ListAccounts", mock.Anything).Return([]model.ERPAccount{
		{OmieID: 100, Description: "Pagar.me"},
		{OmieID: 200, Description: model.DefaultOmieAccountDescription},
	}, nil)
	env.ds.On("UpsertOmieAccount", mock.Anything, model.OmieAccount{OmieID: 100, Description: "Pagar.me"}).
		Return(&model.OmieAccount{ID: "oma_1", OmieID: 100, Description: "Pagar.me"}, nil)
	env.ds.On("UpsertOmieAccount", mock.Anything, model.OmieAccount{OmieID: 200, Description: model.DefaultOmieAccountDescription}).
		Return(&model.OmieAccount{ID: "oma_2", OmieID: 200, Description: model.DefaultOmieAccountDescription}, nil)

	synced, err := env.c.SyncOmieAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)
}

func TestSyncOmieAccounts_StoreFailure(t *testing.T) {
	env := newTestEnv(t)

	env.erp.On("ListAccounts", mock.Anything).Return([]model.ERPAccount{{OmieID: 100, Description: "Pagar.me"}}, nil)
	env.ds.On("UpsertOmieAccount", mock.Anything, mock.Anything).Return(nil, errors.New("read-only transaction"))

	synced, err := env.c.SyncOmieAccounts(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, synced)
}

func TestGetTransaction(t *testing.T) {
	env := newTestEnv(t)
	txn := pendingTransaction("txn_1", 1, "tid-a", "001/001", originAccount(true))
	env.ds.On("GetTransactionByID", mock.Anything, "txn_1").Return(txn, nil)
	env.ds.On("GetTransactionByID", mock.Anything, "txn_2").
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "transaction not found", nil))

	got, err := env.c.GetTransaction(context.Background(), "txn_1")
	require.NoError(t, err)
	assert.Equal(t, txn, got)

	_, err = env.c.GetTransaction(context.Background(), "txn_2")
	assert.True(t, apierror.HasCode(err, apierror.ErrNotFound))
}
