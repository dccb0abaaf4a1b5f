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
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var installmentLabelPattern = regexp.MustCompile(`^\s*\d+\s*/\s*\d+\s*$`)

// ERPTransactionSummary is one row of the ERP receivables listing.
type ERPTransactionSummary struct {
	LedgerID     int64  `json:"ledger_id"`
	AccountID    int64  `json:"erp_account_id"`
	DocumentType string `json:"document_type"`
}

// ERPTransactionDetail is the full ERP receivable title.
type ERPTransactionDetail struct {
	LedgerID         int64     `json:"ledger_id"`
	AccountID        int64     `json:"account_ref"`
	TID              string    `json:"reference_id"`
	GrossAmount      float64   `json:"gross_amount"`
	InstallmentLabel string    `json:"installment_label"`
	RegistrationDate time.Time `json:"registration_date"`
	ForecastDate     time.Time `json:"forecast_date"`
	Note             string    `json:"note"`
	DocumentType     string    `json:"doc_type"`
	InvoiceNumber    string    `json:"invoice_number"`
	CustomerName     string    `json:"customer_name"`
	Status           string    `json:"status"`
}

// ERPStatusReceived is the ERP title status of a receivable already settled in the ERP.
const ERPStatusReceived = "RECEBIDO"

func (d *ERPTransactionDetail) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.LedgerID, validation.Required),
		validation.Field(&d.AccountID, validation.Required),
		validation.Field(&d.TID, validation.Required),
		validation.Field(&d.GrossAmount, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&d.InstallmentLabel, validation.Required, validation.Match(installmentLabelPattern)),
		validation.Field(&d.RegistrationDate, validation.Required),
		validation.Field(&d.DocumentType, validation.Required, validation.In("PIX", "CRC", "CRD")),
	)
}

// ERPAccount is a bank account as listed by the ERP.
type ERPAccount struct {
	OmieID      int64  `json:"omie_id"`
	Description string `json:"description"`
}

// ReceiptRelease settles an ERP receivable title.
type ReceiptRelease struct {
	LedgerID  int64
	AccountID int64
	Amount    float64
	Date      time.Time
	Note      string
}

// FeeLaunch creates a fee ledger entry on an ERP bank account.
type FeeLaunch struct {
	DedupKey     string
	AccountID    int64
	Amount       float64
	Date         time.Time
	Category     string
	DocumentType string
	Note         string
	Project      int64
	Department   string
}

// ValueTransfer moves settled funds between two ERP bank accounts.
type ValueTransfer struct {
	DedupKey             string
	OriginAccountID      int64
	DestinationAccountID int64
	Amount               float64
	Date                 time.Time
	Category             string
	Note                 string
}
