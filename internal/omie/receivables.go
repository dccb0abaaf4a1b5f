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

package omie

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/model"
	"github.com/sirupsen/logrus"
)

type listReceivablesParam struct {
	Page              int    `json:"pagina"`
	PerPage           int    `json:"registros_por_pagina"`
	OnlyImportedByAPI string `json:"apenas_importado_api"`
	DateFrom          string `json:"filtrar_por_data_de"`
	DateTo            string `json:"filtrar_por_data_ate"`
}

type receivableSummary struct {
	LedgerID     int64  `json:"codigo_lancamento_omie"`
	AccountID    int64  `json:"id_conta_corrente"`
	DocumentType string `json:"codigo_tipo_documento"`
}

type listReceivablesResponse struct {
	Page        int                 `json:"pagina"`
	TotalPages  int                 `json:"total_de_paginas"`
	Records     int                 `json:"registros"`
	Receivables []receivableSummary `json:"conta_receber_cadastro"`
}

type receivableDetail struct {
	LedgerID         int64   `json:"codigo_lancamento_omie"`
	AccountID        int64   `json:"id_conta_corrente"`
	NSU              string  `json:"nsu"`
	Value            float64 `json:"valor_documento"`
	Installment      string  `json:"numero_parcela"`
	RegistrationDate string  `json:"data_registro"`
	IssueDate        string  `json:"data_emissao"`
	ForecastDate     string  `json:"data_previsao"`
	Note             string  `json:"observacao"`
	DocumentType     string  `json:"codigo_tipo_documento"`
	DocumentNumber   string  `json:"numero_documento"`
	CustomerName     string  `json:"nome_cliente"`
	Status           string  `json:"status_titulo"`
}

type releaseParam struct {
	LedgerID  int64   `json:"codigo_lancamento"`
	AccountID int64   `json:"codigo_conta_corrente"`
	Value     float64 `json:"valor"`
	Date      string  `json:"data"`
	Note      string  `json:"observacao,omitempty"`
}

type releaseResponse struct {
	LedgerID    int64   `json:"codigo_lancamento"`
	SettleID    int64   `json:"codigo_baixa"`
	Settled     string  `json:"liquidado"`
	Value       float64 `json:"valor_baixado"`
	StatusCode  string  `json:"codigo_status"`
	Description string  `json:"descricao_status"`
}

// ListTransactions pages through the receivables registered between from and to.
// When a page fails the summaries gathered so far are returned along with the error.
func (c *Client) ListTransactions(ctx context.Context, from, to time.Time) ([]model.ERPTransactionSummary, error) {
	var summaries []model.ERPTransactionSummary
	page := 1
	for {
		var resp listReceivablesResponse
		err := c.call(ctx, resourceReceivables, "ListarContasReceber", listReceivablesParam{
			Page:              page,
			PerPage:           c.pageSize,
			OnlyImportedByAPI: "N",
			DateFrom:          formatDate(from),
			DateTo:            formatDate(to),
		}, &resp)
		if err != nil {
			return summaries, upstream(fmt.Sprintf("failed to list erp receivables on page %d", page), err)
		}

		if len(resp.Receivables) == 0 {
			break
		}
		for _, r := range resp.Receivables {
			summaries = append(summaries, model.ERPTransactionSummary{
				LedgerID:     r.LedgerID,
				AccountID:    r.AccountID,
				DocumentType: strings.TrimSpace(r.DocumentType),
			})
		}

		if resp.TotalPages > 0 && page >= resp.TotalPages {
			break
		}
		page++
	}

	logrus.WithFields(logrus.Fields{
		"from":  formatDate(from),
		"to":    formatDate(to),
		"pages": page,
		"count": len(summaries),
	}).Info("listed erp receivables")
	return summaries, nil
}

// GetTransactionDetail fetches one receivable title.
func (c *Client) GetTransactionDetail(ctx context.Context, ledgerID int64) (*model.ERPTransactionDetail, error) {
	var resp receivableDetail
	err := c.call(ctx, resourceReceivables, "ConsultarContaReceber", map[string]int64{
		"codigo_lancamento_omie": ledgerID,
	}, &resp)
	if err != nil {
		return nil, upstream(fmt.Sprintf("failed to fetch erp receivable %d", ledgerID), err)
	}

	detail := &model.ERPTransactionDetail{
		LedgerID:         resp.LedgerID,
		AccountID:        resp.AccountID,
		TID:              strings.TrimSpace(resp.NSU),
		GrossAmount:      resp.Value,
		InstallmentLabel: strings.TrimSpace(resp.Installment),
		Note:             resp.Note,
		DocumentType:     strings.TrimSpace(resp.DocumentType),
		InvoiceNumber:    strings.TrimSpace(resp.DocumentNumber),
		CustomerName:     resp.CustomerName,
		Status:           strings.TrimSpace(resp.Status),
	}
	if detail.LedgerID == 0 {
		detail.LedgerID = ledgerID
	}
	if detail.InstallmentLabel == "" {
		detail.InstallmentLabel = "001/001"
	}

	registration := resp.RegistrationDate
	if registration == "" {
		registration = resp.IssueDate
	}
	if registration != "" {
		date, err := parseDate(registration)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrDataInconsistency, fmt.Sprintf("invalid registration date on erp receivable %d", ledgerID), err)
		}
		detail.RegistrationDate = date
	}
	if resp.ForecastDate != "" {
		if date, err := parseDate(resp.ForecastDate); err == nil {
			detail.ForecastDate = date
		}
	}

	return detail, nil
}

// ReleaseReceipt settles a receivable title in the ERP.
func (c *Client) ReleaseReceipt(ctx context.Context, release model.ReceiptRelease) error {
	var resp releaseResponse
	err := c.call(ctx, resourceReceivables, "LancarRecebimento", releaseParam{
		LedgerID:  release.LedgerID,
		AccountID: release.AccountID,
		Value:     release.Amount,
		Date:      formatDate(release.Date),
		Note:      release.Note,
	}, &resp)
	if err != nil {
		return upstream(fmt.Sprintf("failed to release erp receivable %d", release.LedgerID), err)
	}
	if resp.StatusCode != "" && resp.StatusCode != "0" {
		return upstream(fmt.Sprintf("erp rejected release of receivable %d", release.LedgerID), fmt.Errorf("status %s: %s", resp.StatusCode, resp.Description))
	}
	return nil
}
