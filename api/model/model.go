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

package model

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DateLayout is the layout of every date accepted by the API.
const DateLayout = "2006-01-02"

// IngestTransactions is the body of a manual ingestion. Empty bounds fall back to the
// configured lookback window ending today.
type IngestTransactions struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// JobResponse reports the outcome of a job trigger.
type JobResponse struct {
	Job    string `json:"job"`
	Status string `json:"status"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (i *IngestTransactions) ValidateIngestTransactions() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.From, validation.Date(DateLayout).Error("from must be formatted as YYYY-MM-DD")),
		validation.Field(&i.To, validation.Date(DateLayout).Error("to must be formatted as YYYY-MM-DD")),
	)
}

// Window resolves the ingestion window against today.
func (i *IngestTransactions) Window(today time.Time, lookbackDays int) (time.Time, time.Time, error) {
	from := today.AddDate(0, 0, -lookbackDays)
	to := today

	var err error
	if i.From != "" {
		if from, err = time.ParseInLocation(DateLayout, i.From, time.UTC); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if i.To != "" {
		if to, err = time.ParseInLocation(DateLayout, i.To, time.UTC); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("to cannot be before from")
	}
	return from, to, nil
}
