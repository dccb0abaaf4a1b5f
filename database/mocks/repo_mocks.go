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

package mocks

import (
	"context"
	"time"

	"github.com/blnkfinance/conciliator/model"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Omie account methods

func (m *MockDataSource) UpsertOmieAccount(ctx context.Context, acc model.OmieAccount) (*model.OmieAccount, error) {
	args := m.Called(ctx, acc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OmieAccount), args.Error(1)
}

func (m *MockDataSource) GetOmieAccountByOmieID(ctx context.Context, omieID int64) (*model.OmieAccount, error) {
	args := m.Called(ctx, omieID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OmieAccount), args.Error(1)
}

func (m *MockDataSource) GetAllOmieAccounts(ctx context.Context) ([]model.OmieAccount, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.OmieAccount), args.Error(1)
}

// Account methods

func (m *MockDataSource) GetAccountByOrigin(ctx context.Context, omieAccountID string) (*model.Account, error) {
	args := m.Called(ctx, omieAccountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *MockDataSource) GetInstallment(ctx context.Context, accountID string, number int) (*model.Installment, error) {
	args := m.Called(ctx, accountID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Installment), args.Error(1)
}

// Transaction methods

func (m *MockDataSource) GetExistingOmieIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]bool), args.Error(1)
}

func (m *MockDataSource) BulkInsertTransactions(ctx context.Context, txns []*model.Transaction) (int, error) {
	args := m.Called(ctx, txns)
	return args.Int(0), args.Error(1)
}

func (m *MockDataSource) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockDataSource) GetPendingTransactions(ctx context.Context, today, cutoff time.Time) ([]*model.Transaction, error) {
	args := m.Called(ctx, today, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockDataSource) GetUnsettledTransactions(ctx context.Context, cutoff time.Time) ([]*model.Transaction, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

func (m *MockDataSource) BulkUpdateReconciliation(ctx context.Context, txns []*model.Transaction) error {
	args := m.Called(ctx, txns)
	return args.Error(0)
}

func (m *MockDataSource) MarkReceiptReleased(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) MarkFeeLaunched(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) MarkValueTransferred(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDataSource) UpdateExpectedDate(ctx context.Context, id string, date time.Time) error {
	args := m.Called(ctx, id, date)
	return args.Error(0)
}
