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

package acquirer

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/internal/request"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://acquirer.test/1"

func newTestClient(transport *httpmock.MockTransport) *Client {
	return NewClient(
		config.AcquirerConfig{BaseURL: testBaseURL, ApiKey: "ak_test"},
		config.HTTPConfig{ConnectTimeoutSec: 1, ReadTimeoutSec: 1},
		WithHTTPClient(&http.Client{Transport: transport}),
	)
}

func TestGetPayables(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testBaseURL+"/payables",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "123456", req.URL.Query().Get("transaction_id"))
			assert.Equal(t, "1000", req.URL.Query().Get("count"))
			assert.Equal(t, "Basic "+request.BasicAuth("ak_test", ""), req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(200, `[
				{"id": 1, "status": "paid", "amount": 47500, "fee": 500, "installment": 1, "transaction_id": 123456, "payment_date": "2024-12-10T03:00:00.000Z"},
				{"id": 2, "status": "waiting_funds", "amount": 47500, "fee": 500, "installment": 2, "transaction_id": 123456, "payment_date": "2025-01-10T03:00:00.000Z"}
			]`), nil
		})

	payables, err := newTestClient(transport).GetPayables(context.Background(), "123456")
	require.NoError(t, err)
	require.Len(t, payables, 2)

	assert.Equal(t, "1", payables[0].ID)
	assert.Equal(t, 475.0, payables[0].Amount)
	assert.Equal(t, 5.0, payables[0].Fee)
	assert.Equal(t, 1, payables[0].InstallmentNumber)
	assert.Equal(t, "paid", payables[0].Status)
	assert.Equal(t, time.Date(2024, 12, 10, 3, 0, 0, 0, time.UTC), payables[0].PaymentDate)
	assert.Equal(t, "waiting_funds", payables[1].Status)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestGetPayables_SkipsUnreadableDates(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testBaseURL+"/payables",
		httpmock.NewStringResponder(200, `[
			{"id": 1, "status": "paid", "amount": 100, "fee": 1, "installment": 1, "payment_date": "10/12/2024"},
			{"id": 2, "status": "paid", "amount": 100, "fee": 1, "installment": 1, "payment_date": "2024-12-10T03:00:00Z"}
		]`))

	payables, err := newTestClient(transport).GetPayables(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, payables, 1)
	assert.Equal(t, "2", payables[0].ID)
}

func TestGetPayables_Upstream(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", testBaseURL+"/payables",
		httpmock.NewStringResponder(500, `{"errors":[{"message":"Internal server error"}]}`))

	payables, err := newTestClient(transport).GetPayables(context.Background(), "1")
	assert.Nil(t, payables)
	assert.True(t, apierror.HasCode(err, apierror.ErrUpstreamUnavailable))
}

func TestGetPayables_TransportError(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterNoResponder(httpmock.ConnectionFailure)

	_, err := newTestClient(transport).GetPayables(context.Background(), "1")
	assert.True(t, apierror.HasCode(err, apierror.ErrUpstreamUnavailable))
}
