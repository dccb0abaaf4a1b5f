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

package acquirer

import (
	"context"
	"sync"

	"github.com/blnkfinance/conciliator/model"
	"golang.org/x/sync/singleflight"
)

// Fetcher is anything that can list the payables of an acquirer transaction.
type Fetcher interface {
	GetPayables(ctx context.Context, referenceID string) ([]model.Payable, error)
}

type cacheEntry struct {
	payables []model.Payable
	err      error
}

// PayableCache memoizes payables per reference for the lifetime of one reconciliation run.
// Concurrent lookups of the same reference share a single upstream request, and failures
// are remembered too so a reference is fetched at most once. Build a new cache per run.
type PayableCache struct {
	fetcher Fetcher

	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

func NewPayableCache(fetcher Fetcher) *PayableCache {
	return &PayableCache{
		fetcher: fetcher,
		entries: make(map[string]cacheEntry),
	}
}

func (c *PayableCache) GetPayables(ctx context.Context, referenceID string) ([]model.Payable, error) {
	if entry, ok := c.lookup(referenceID); ok {
		return entry.payables, entry.err
	}

	v, _, _ := c.group.Do(referenceID, func() (interface{}, error) {
		if entry, ok := c.lookup(referenceID); ok {
			return entry, nil
		}
		payables, err := c.fetcher.GetPayables(ctx, referenceID)
		entry := cacheEntry{payables: payables, err: err}

		c.mu.Lock()
		c.entries[referenceID] = entry
		c.mu.Unlock()
		return entry, nil
	})

	entry := v.(cacheEntry)
	return entry.payables, entry.err
}

// Len returns the number of cached references.
func (c *PayableCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *PayableCache) lookup(referenceID string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[referenceID]
	return entry, ok
}
