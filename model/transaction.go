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

const (
	StatusReceivedInFull    = "received in full"
	StatusReceivedPartially = "received partially"
)

const (
	DocumentTypeDebit  = "DEBIT"
	DocumentTypeCredit = "CREDIT"
	DocumentTypePIX    = "PIX"
)

// erpDocumentTypes maps ERP document codes to local document types.
var erpDocumentTypes = map[string]string{
	"PIX": DocumentTypePIX,
	"CRC": DocumentTypeCredit,
	"CRD": DocumentTypeDebit,
}

// DocumentTypeFromERP returns the local document type for an ERP document code.
func DocumentTypeFromERP(code string) (string, bool) {
	t, ok := erpDocumentTypes[code]
	return t, ok
}

// Transaction is one ERP receivable title tracked through reconciliation.
// Received-side pointers stay nil until the acquirer reports a settlement.
type Transaction struct {
	ID                     string     `json:"id"`
	AccountID              string     `json:"account_id"`
	CodIDOmie              int64      `json:"cod_id_omie"`
	AccountName            string     `json:"account_name"`
	TID                    string     `json:"tid"`
	Installment            string     `json:"installment"`
	InvoiceNumber          string     `json:"invoice_number"`
	ExpectedValue          float64    `json:"expected_value"`
	Fee                    float64    `json:"fee"`
	Balance                float64    `json:"balance"`
	ExpectedDate           time.Time  `json:"expected_date"`
	AccountsReceivableNote string     `json:"accounts_receivable_note"`
	DocumentType           string     `json:"document_type"`
	ReceivedValue          *float64   `json:"received_value,omitempty"`
	AcquirerFee            *float64   `json:"acquirer_fee,omitempty"`
	ValueDifference        *float64   `json:"value_difference,omitempty"`
	PaymentDate            *time.Time `json:"payment_date,omitempty"`
	Status                 *string    `json:"status,omitempty"`
	OmieReceiptReleased    bool       `json:"omie_receipt_released"`
	OmieFeeLaunched        bool       `json:"omie_fee_launched"`
	OmieValueTransferred   bool       `json:"omie_value_transferred"`
	CreatedAt              time.Time  `json:"created_at"`
	Account                *Account   `json:"account,omitempty"`
}

// Reconciled reports whether the acquirer side has been recorded.
func (transaction *Transaction) Reconciled() bool {
	return transaction.ReceivedValue != nil && transaction.Status != nil
}

// DedupKey returns the ERP integration code of this transaction's installment.
func (transaction *Transaction) DedupKey() string {
	return DedupKey(transaction.TID, transaction.Installment)
}

// TransferDedupKey returns the ERP integration code of this transaction's transfer entry.
func (transaction *Transaction) TransferDedupKey() string {
	return TransferDedupKey(transaction.TID, transaction.Installment)
}

// InstallmentNumber returns N from the "N/M" label.
func (transaction *Transaction) InstallmentNumber() (int, error) {
	n, _, err := ParseInstallmentLabel(transaction.Installment)
	return n, err
}

// Settled reports whether every propagation action that applies to this transaction has run.
func (transaction *Transaction) Settled() bool {
	releaseDone := transaction.OmieReceiptReleased || (transaction.Account != nil && transaction.Account.Settle)
	transferDone := transaction.OmieValueTransferred || !transaction.Account.HasDestiny()
	return releaseDone && transaction.OmieFeeLaunched && transferDone
}
