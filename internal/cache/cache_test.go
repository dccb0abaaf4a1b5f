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
package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewCache(config.RedisConfig{Dns: mr.Addr()})
	require.NoError(t, err)
	return c, mr
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	account := model.Account{ID: "acc_1", OriginOmieID: 4455, DaysToReceive: 30}
	require.NoError(t, c.Set(ctx, "account:origin:4455", account, 5*time.Minute))

	var got model.Account
	require.NoError(t, c.Get(ctx, "account:origin:4455", &got))
	assert.Equal(t, account.ID, got.ID)
	assert.Equal(t, int64(4455), got.OriginOmieID)
	assert.Equal(t, 30, got.DaysToReceive)
}

func TestGetMiss(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	var got map[string]string
	err := c.Get(ctx, "nonExistentKey", &got)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", map[string]string{"hello": "world"}, time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	var got map[string]string
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Empty(t, got)

	assert.NoError(t, c.Delete(ctx, "never-set"))
}

func TestSharedThroughRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	writer, err := NewCache(config.RedisConfig{Dns: mr.Addr()})
	require.NoError(t, err)
	reader, err := NewCache(config.RedisConfig{Dns: mr.Addr()})
	require.NoError(t, err)

	require.NoError(t, writer.Set(ctx, "omie_account:1", model.OmieAccount{ID: "oa_1", OmieID: 1}, time.Minute))
	assert.True(t, mr.Exists("omie_account:1"))

	var got model.OmieAccount
	require.NoError(t, reader.Get(ctx, "omie_account:1", &got))
	assert.Equal(t, "oa_1", got.ID)
}

func TestNewCache_Unreachable(t *testing.T) {
	_, err := NewCache(config.RedisConfig{Dns: "localhost:1"})
	assert.Error(t, err)
}
