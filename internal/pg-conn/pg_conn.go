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

package pgconn

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/blnkfinance/conciliator/config"
	_ "github.com/lib/pq" // postgres driver
	"github.com/sirupsen/logrus"
)

const pingTimeout = 10 * time.Second

var ErrEmptyDSN = errors.New("postgres dsn is empty")

// ConnectDB opens a pooled postgres connection and verifies it with a ping.
func ConnectDB(cnf config.DataSourceConfig) (*sql.DB, error) {
	dsn := strings.TrimSpace(cnf.Dns)
	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	applyPool(db, cnf)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logrus.WithError(err).Error("database connection error ❌")
		_ = db.Close()
		return nil, err
	}

	logrus.Info("database connection established ✅")
	return db, nil
}

func applyPool(db *sql.DB, cnf config.DataSourceConfig) {
	if cnf.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cnf.MaxOpenConns)
	}
	if cnf.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cnf.MaxIdleConns)
	}
	if cnf.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cnf.ConnMaxLifetime)
	}
	if cnf.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cnf.ConnMaxIdleTime)
	}
}
