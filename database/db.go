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
	"database/sql"
	"sync"
	"time"

	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/internal/cache"
	pgconn "github.com/blnkfinance/conciliator/internal/pg-conn"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

// Declare a package-level variable to hold the singleton instance.
var instance *Datasource
var once sync.Once

var tracer = otel.Tracer("conciliator.database")

const lookupCacheTTL = 5 * time.Minute

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := pgconn.ConnectDB(configuration.DataSource)
		if errConn != nil {
			err = errConn
			return
		}

		cacheInstance, errCache := cache.NewCache(configuration.Redis)
		if errCache != nil {
			// lookups fall through to postgres
			logrus.WithError(errCache).Warn("lookup cache unavailable")
			cacheInstance = nil
		}

		instance = &Datasource{Conn: con, Cache: cacheInstance}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// cached reads key into data. A miss leaves data untouched, so callers check what they got.
func (d Datasource) cached(ctx context.Context, key string, data interface{}) bool {
	if d.Cache == nil {
		return false
	}
	if err := d.Cache.Get(ctx, key, data); err != nil {
		logrus.WithError(err).WithField("key", key).Debug("cache read failed")
		return false
	}
	return true
}

func (d Datasource) cache(ctx context.Context, key string, data interface{}) {
	if d.Cache == nil {
		return
	}
	if err := d.Cache.Set(ctx, key, data, lookupCacheTTL); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("failed to cache lookup")
	}
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}
