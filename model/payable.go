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

const PayableStatusPaid = "paid"

// Payable is one acquirer-side release of an installment. Amounts are in currency units.
type Payable struct {
	ID                string    `json:"id"`
	TransactionID     string    `json:"transaction_id"`
	InstallmentNumber int       `json:"installment"`
	Status            string    `json:"status"`
	Amount            float64   `json:"amount"`
	Fee               float64   `json:"fee"`
	PaymentDate       time.Time `json:"payment_date"`
}

// SettlementAggregate is the sum of the paid payables of one installment.
type SettlementAggregate struct {
	Received    float64
	Fee         float64
	PaymentDate *time.Time
	Count       int
}
