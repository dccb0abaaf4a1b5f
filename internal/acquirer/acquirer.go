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

// Package acquirer fetches settlement payables from a Pagar.me style acquirer API.
package acquirer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/internal/request"
	"github.com/blnkfinance/conciliator/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const pageSize = 1000

var tracer = otel.Tracer("conciliator.acquirer")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the client built from the HTTP timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

func NewClient(cnf config.AcquirerConfig, httpCnf config.HTTPConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cnf.BaseURL, "/"),
		apiKey:  cnf.ApiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = request.NewClient(httpCnf.ConnectTimeout(), httpCnf.ReadTimeout())
	}
	return c
}

// payable is the wire shape. Amounts are integer cents.
type payable struct {
	ID            int64  `json:"id"`
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	Fee           int64  `json:"fee"`
	Installment   int    `json:"installment"`
	TransactionID int64  `json:"transaction_id"`
	PaymentDate   string `json:"payment_date"`
}

// GetPayables lists every payable of the acquirer transaction referenceID.
func (c *Client) GetPayables(ctx context.Context, referenceID string) ([]model.Payable, error) {
	ctx, span := tracer.Start(ctx, "GetPayables")
	defer span.End()
	span.SetAttributes(attribute.String("acquirer.tid", referenceID))

	query := url.Values{}
	query.Set("transaction_id", referenceID)
	query.Set("count", fmt.Sprint(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payables?"+query.Encode(), nil)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to build acquirer request", err)
	}
	req.Header.Set("Authorization", "Basic "+request.BasicAuth(c.apiKey, ""))

	var wire []payable
	if _, err := request.Call(c.httpClient, req, &wire); err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrUpstreamUnavailable, fmt.Sprintf("failed to fetch payables of %s", referenceID), err)
	}

	payables := make([]model.Payable, 0, len(wire))
	for _, p := range wire {
		converted, err := p.toModel()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"tid":        referenceID,
				"payable_id": p.ID,
				"error":      err,
			}).Warn("skipping payable with unreadable payment date")
			continue
		}
		payables = append(payables, converted)
	}
	return payables, nil
}

func (p payable) toModel() (model.Payable, error) {
	var paymentDate time.Time
	if p.PaymentDate != "" {
		parsed, err := time.Parse(time.RFC3339, p.PaymentDate)
		if err != nil {
			return model.Payable{}, err
		}
		paymentDate = parsed.UTC()
	}
	return model.Payable{
		ID:                fmt.Sprint(p.ID),
		TransactionID:     fmt.Sprint(p.TransactionID),
		InstallmentNumber: p.Installment,
		Status:            p.Status,
		Amount:            fromCents(p.Amount),
		Fee:               fromCents(p.Fee),
		PaymentDate:       paymentDate,
	}, nil
}

func fromCents(cents int64) float64 {
	v, _ := decimal.New(cents, -2).Float64()
	return v
}
