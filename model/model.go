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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidInstallmentLabel is returned when an installment label is not of the form "N/M".
var ErrInvalidInstallmentLabel = errors.New("invalid installment label")

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// RoundMoney rounds an amount to cents, half away from zero.
func RoundMoney(amount float64) float64 {
	v, _ := decimal.NewFromFloat(amount).Round(2).Float64()
	return v
}

// SubMoney returns round(a - b, 2) computed in decimal arithmetic.
func SubMoney(a, b float64) float64 {
	v, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).Float64()
	return v
}

// PercentOf returns round(amount * percent / 100, 2).
func PercentOf(amount, percent float64) float64 {
	v, _ := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		Float64()
	return v
}

// ParseInstallmentLabel splits an ERP installment label such as "002/006" into its
// number and total.
func ParseInstallmentLabel(label string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(label), "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidInstallmentLabel, label)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidInstallmentLabel, label)
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidInstallmentLabel, label)
	}
	if n < 1 || m < 1 || n > m {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidInstallmentLabel, label)
	}
	return n, m, nil
}

// DedupKey is the integration code used to deduplicate ERP ledger entries for one
// acquirer installment.
func DedupKey(tid, installment string) string {
	return tid + "-" + installment
}

// TransferDedupKey is the integration code of the transfer entry of one acquirer installment.
// The ERP keeps integration codes unique per entry, so it cannot reuse the fee entry's code.
func TransferDedupKey(tid, installment string) string {
	return DedupKey(tid, installment) + "-TRF"
}

// Date truncates t to midnight UTC. Settlement dates carry no time of day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
