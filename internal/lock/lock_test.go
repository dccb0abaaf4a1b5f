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

package redlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_Lock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "job:reconciliation", "worker-1")

	mock.ExpectSetNX("job:reconciliation", "worker-1", 5*time.Second).SetVal(true)

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Lock_Held(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "job:reconciliation", "worker-1")

	mock.ExpectSetNX("job:reconciliation", "worker-1", 5*time.Second).SetVal(false)

	err := locker.Lock(context.Background(), 5*time.Second)
	assert.True(t, errors.Is(err, ErrLockHeld))
	assert.EqualError(t, err, "lock for key job:reconciliation: lock is already held")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Unlock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "job:ingestion", "worker-1")

	mock.ExpectEval(unlockScript, []string{"job:ingestion"}, "worker-1").SetVal(int64(1))
	assert.NoError(t, locker.Unlock(context.Background()))

	mock.ExpectEval(unlockScript, []string{"job:ingestion"}, "worker-1").SetVal(int64(0))
	err := locker.Unlock(context.Background())
	assert.EqualError(t, err, "unlock failed, either lock expired or you're not the lock holder for key job:ingestion")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_ExtendLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "job:ingestion", "worker-1")

	mock.ExpectEval(extendScript, []string{"job:ingestion"}, "worker-1", "5000").SetVal(int64(1))
	assert.NoError(t, locker.ExtendLock(context.Background(), 5*time.Second))

	mock.ExpectEval(extendScript, []string{"job:ingestion"}, "worker-1", "5000").SetVal(int64(0))
	err := locker.ExtendLock(context.Background(), 5*time.Second)
	assert.EqualError(t, err, "lock extension failed for key job:ingestion, either lock expired or you're not the holder")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_WaitLock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "job:sync_fee", "worker-1")

	mock.ExpectSetNX("job:sync_fee", "worker-1", 5*time.Second).SetVal(true)

	err := locker.WaitLock(context.Background(), 5*time.Second, 2*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_WaitLock_AcquiresAfterRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	holder := NewLocker(client, "job:sync_dates", "worker-1")
	require.NoError(t, holder.Lock(context.Background(), time.Minute))

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = holder.Unlock(context.Background())
	}()

	waiter := NewLocker(client, "job:sync_dates", "worker-2")
	err := waiter.WaitLock(context.Background(), time.Minute, 3*time.Second)
	require.NoError(t, err)

	value, err := mr.Get("job:sync_dates")
	require.NoError(t, err)
	assert.Equal(t, "worker-2", value)
}

func TestLocker_WaitLock_Timeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, NewLocker(client, "job:sync_status", "worker-1").Lock(context.Background(), time.Minute))

	err := NewLocker(client, "job:sync_status", "worker-2").WaitLock(context.Background(), time.Minute, 200*time.Millisecond)
	assert.ErrorContains(t, err, "failed to acquire lock for key job:sync_status within the wait timeout")
	assert.True(t, errors.Is(err, ErrLockHeld))
}
