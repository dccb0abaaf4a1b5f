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

import "time"

const DefaultOmieAccountDescription = "No description"

// OmieAccount mirrors an ERP bank account.
type OmieAccount struct {
	ID          string    `json:"id"`
	OmieID      int64     `json:"omie_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Account binds an acquirer account to its ERP origin and, when funds must be moved on
// settlement, an ERP destiny account.
type Account struct {
	ID                 string        `json:"id"`
	AccountNumber      string        `json:"account_number"`
	OmieAccountOrigin  string        `json:"omie_account_origin"`
	OmieAccountDestiny *string       `json:"omie_account_destiny,omitempty"`
	OriginOmieID       int64         `json:"origin_omie_id,omitempty"`
	DestinyOmieID      *int64        `json:"destiny_omie_id,omitempty"`
	Acquirer           string        `json:"acquirer"`
	Settle             bool          `json:"settle"`
	DaysToReceive      int           `json:"days_to_receive"`
	Installments       []Installment `json:"installments,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// HasDestiny reports whether settlement requires a transfer to another ERP account.
func (a *Account) HasDestiny() bool {
	return a != nil && a.OmieAccountDestiny != nil && a.DestinyOmieID != nil
}

type Installment struct {
	ID                string  `json:"id"`
	AccountID         string  `json:"account_id"`
	InstallmentNumber int     `json:"installment_number"`
	Fee               float64 `json:"fee"`
}

// FindInstallment returns the installment configured for number n.
func (a *Account) FindInstallment(n int) (*Installment, bool) {
	if a == nil {
		return nil, false
	}
	for i := range a.Installments {
		if a.Installments[i].InstallmentNumber == n {
			return &a.Installments[i], true
		}
	}
	return nil, false
}
