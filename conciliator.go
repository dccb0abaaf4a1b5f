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
	"embed"
	"time"

	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/database"
	"github.com/blnkfinance/conciliator/internal/acquirer"
	"github.com/blnkfinance/conciliator/internal/omie"
	"github.com/blnkfinance/conciliator/model"
	redis_db "github.com/blnkfinance/conciliator/internal/redis-db"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

//go:embed sql/*.sql
var SQLFiles embed.FS

var tracer = otel.Tracer("conciliator.engine")

// Conciliator reconciles ERP receivables against acquirer payables and propagates the
// settlements back to the ERP.
type Conciliator struct {
	config     *config.Configuration
	datasource database.IDataSource
	erp        ERPGateway
	acquirer   SettlementClient
	redis      redis.UniversalClient
	queue      *Queue
	now        func() time.Time
}

type Option func(*Conciliator)

func WithERPGateway(erp ERPGateway) Option {
	return func(c *Conciliator) {
		c.erp = erp
	}
}

func WithSettlementClient(client SettlementClient) Option {
	return func(c *Conciliator) {
		c.acquirer = client
	}
}

// WithRedis sets the client used for job locks.
func WithRedis(client redis.UniversalClient) Option {
	return func(c *Conciliator) {
		c.redis = client
	}
}

func WithQueue(q *Queue) Option {
	return func(c *Conciliator) {
		c.queue = q
	}
}

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(c *Conciliator) {
		c.now = now
	}
}

// NewConciliator wires the engine from the loaded configuration. Collaborators not supplied
// through options are built from it.
func NewConciliator(db database.IDataSource, opts ...Option) (*Conciliator, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	c := &Conciliator{
		config:     configuration,
		datasource: db,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.erp == nil {
		c.erp = omie.NewClient(configuration.Omie, configuration.HTTP)
	}
	if c.acquirer == nil {
		c.acquirer = acquirer.NewClient(configuration.Acquirer, configuration.HTTP)
	}
	if c.redis == nil {
		redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
		if err != nil {
			return nil, err
		}
		c.redis = redisClient.Client()
	}
	if c.queue == nil {
		q, err := NewQueue(configuration)
		if err != nil {
			return nil, err
		}
		c.queue = q
	}

	return c, nil
}

// today is the current date at midnight UTC.
func (c *Conciliator) today() time.Time {
	return model.Date(c.now().UTC())
}

// Close releases the queue client.
func (c *Conciliator) Close() error {
	if c.queue != nil {
		return c.queue.Close()
	}
	return nil
}
