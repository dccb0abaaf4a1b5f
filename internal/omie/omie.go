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

// Package omie is the HTTP client of the Omie ERP JSON-RPC style API.
package omie

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/internal/request"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	dateLayout = "02/01/2006"

	resourceReceivables   = "financas/contareceber/"
	resourceLedgerEntries = "financas/contacorrentelancamentos/"
	resourceBankAccounts  = "geral/contacorrente/"
)

var tracer = otel.Tracer("conciliator.omie")

// Client talks to the Omie API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	appKey     string
	appSecret  string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

// WithHTTPClient replaces the client built from the HTTP timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLimiter paces every call through l.
func WithLimiter(l *rate.Limiter) Option {
	return func(client *Client) {
		client.limiter = l
	}
}

func NewClient(cnf config.OmieConfig, httpCnf config.HTTPConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(cnf.BaseURL, "/"),
		appKey:    cnf.AppKey,
		appSecret: cnf.AppSecret,
		pageSize:  cnf.PageSize,
	}
	if c.pageSize <= 0 {
		c.pageSize = 20
	}
	if cnf.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cnf.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = request.NewClient(httpCnf.ConnectTimeout(), httpCnf.ReadTimeout())
	}
	return c
}

type envelope struct {
	Call      string        `json:"call"`
	Param     []interface{} `json:"param"`
	AppKey    string        `json:"app_key"`
	AppSecret string        `json:"app_secret"`
}

// call posts one API call to resource and decodes the answer into response.
// Transport errors and non-2xx answers are reported as UPSTREAM_UNAVAILABLE.
func (c *Client) call(ctx context.Context, resource, method string, param interface{}, response interface{}) error {
	ctx, span := tracer.Start(ctx, method)
	defer span.End()
	span.SetAttributes(attribute.String("omie.resource", resource))

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			return apierror.NewAPIError(apierror.ErrUpstreamUnavailable, "rate limiter wait failed", err)
		}
	}

	body, err := request.ToJsonReq(envelope{
		Call:      method,
		Param:     []interface{}{param},
		AppKey:    c.appKey,
		AppSecret: c.appSecret,
	})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to encode erp request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.baseURL, resource), body)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to build erp request", err)
	}

	start := time.Now()
	_, err = request.Call(c.httpClient, req, response)
	logrus.WithFields(logrus.Fields{
		"call":     method,
		"resource": resource,
		"duration": time.Since(start).String(),
	}).Debug("erp call")
	if err != nil {
		span.RecordError(err)
		return &callError{method: method, err: err}
	}
	return nil
}

// callError keeps the upstream cause so that callers can inspect fault strings.
type callError struct {
	method string
	err    error
}

func (e *callError) Error() string {
	return fmt.Sprintf("%s: %v", e.method, e.err)
}

func (e *callError) Unwrap() error {
	return e.err
}

// faultContains reports whether err is an ERP fault whose body contains substr.
func faultContains(err error, substr string) bool {
	var statusErr *request.StatusError
	if errors.As(err, &statusErr) {
		return strings.Contains(strings.ToLower(statusErr.Body), strings.ToLower(substr))
	}
	return false
}

func upstream(message string, err error) error {
	return apierror.NewAPIError(apierror.ErrUpstreamUnavailable, message, err)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
}
