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

	"github.com/blnkfinance/conciliator/model"
	"github.com/sirupsen/logrus"
)

// duplicateIntegrationCode is the fragment of the fault the ERP answers when an entry with
// the same integration code already exists.
const duplicateIntegrationCode = "já cadastrad"

type entryHeader struct {
	AccountID int64   `json:"nCodCC"`
	Date      string  `json:"dDtLanc"`
	Value     float64 `json:"nValorLanc"`
}

type entryDetails struct {
	Category     string `json:"cCodCateg,omitempty"`
	DocumentType string `json:"cTipo,omitempty"`
	Project      int64  `json:"nCodProjeto,omitempty"`
	Note         string `json:"cObs,omitempty"`
}

type entryTransfer struct {
	DestinationAccountID int64 `json:"nCodCCDestino"`
}

type entryDepartment struct {
	Code       string  `json:"cCodDep"`
	Percentage float64 `json:"nDistrPerc"`
}

type includeEntryParam struct {
	IntegrationCode string            `json:"cCodIntLanc"`
	Header          entryHeader       `json:"cabecalho"`
	Details         entryDetails      `json:"detalhes"`
	Transfer        *entryTransfer    `json:"transferencia,omitempty"`
	Departments     []entryDepartment `json:"departamentos,omitempty"`
}

type includeEntryResponse struct {
	EntryID         int64  `json:"nCodLanc"`
	IntegrationCode string `json:"cCodIntLanc"`
	StatusCode      string `json:"cCodStatus"`
	Description     string `json:"cDesStatus"`
}

type listEntriesParam struct {
	Page     int    `json:"nPagina"`
	PerPage  int    `json:"nRegPorPagina"`
	DateFrom string `json:"dDtIncDe,omitempty"`
}

type listedEntry struct {
	EntryID         int64  `json:"nCodLanc"`
	IntegrationCode string `json:"cCodIntLanc"`
}

type listEntriesResponse struct {
	Page       int           `json:"nPagina"`
	TotalPages int           `json:"nTotPaginas"`
	Entries    []listedEntry `json:"listaLancamentos"`
}

// LaunchFee creates the acquirer fee entry on the origin bank account.
func (c *Client) LaunchFee(ctx context.Context, fee model.FeeLaunch) error {
	param := includeEntryParam{
		IntegrationCode: fee.DedupKey,
		Header: entryHeader{
			AccountID: fee.AccountID,
			Date:      formatDate(fee.Date),
			Value:     fee.Amount,
		},
		Details: entryDetails{
			Category:     fee.Category,
			DocumentType: fee.DocumentType,
			Project:      fee.Project,
			Note:         fee.Note,
		},
	}
	if fee.Department != "" {
		param.Departments = []entryDepartment{{Code: fee.Department, Percentage: 100}}
	}
	return c.includeEntry(ctx, param)
}

// TransferValue moves the settled net amount from the origin to the destination account.
func (c *Client) TransferValue(ctx context.Context, transfer model.ValueTransfer) error {
	return c.includeEntry(ctx, includeEntryParam{
		IntegrationCode: transfer.DedupKey,
		Header: entryHeader{
			AccountID: transfer.OriginAccountID,
			Date:      formatDate(transfer.Date),
			Value:     transfer.Amount,
		},
		Details: entryDetails{
			Category: transfer.Category,
			Note:     transfer.Note,
		},
		Transfer: &entryTransfer{DestinationAccountID: transfer.DestinationAccountID},
	})
}

// includeEntry creates a bank ledger entry. An entry that already exists under the same
// integration code counts as created.
func (c *Client) includeEntry(ctx context.Context, param includeEntryParam) error {
	var resp includeEntryResponse
	err := c.call(ctx, resourceLedgerEntries, "IncluirLancCC", param, &resp)
	if err != nil {
		if faultContains(err, duplicateIntegrationCode) {
			logrus.WithField("integration_code", param.IntegrationCode).Warn("erp entry already exists, treating as launched")
			return nil
		}
		return upstream(fmt.Sprintf("failed to create erp entry %s", param.IntegrationCode), err)
	}
	if resp.StatusCode != "" && resp.StatusCode != "0" {
		return upstream(fmt.Sprintf("erp rejected entry %s", param.IntegrationCode), fmt.Errorf("status %s: %s", resp.StatusCode, resp.Description))
	}
	return nil
}

// ListLaunchedCodes returns the integration codes of the bank entries created since the given date.
func (c *Client) ListLaunchedCodes(ctx context.Context, since time.Time) (map[string]bool, error) {
	codes := make(map[string]bool)
	page := 1
	for {
		param := listEntriesParam{Page: page, PerPage: 100}
		if !since.IsZero() {
			param.DateFrom = formatDate(since)
		}

		var resp listEntriesResponse
		if err := c.call(ctx, resourceLedgerEntries, "ListarLancCC", param, &resp); err != nil {
			return nil, upstream(fmt.Sprintf("failed to list erp entries on page %d", page), err)
		}
		for _, entry := range resp.Entries {
			if code := strings.TrimSpace(entry.IntegrationCode); code != "" {
				codes[code] = true
			}
		}
		if len(resp.Entries) == 0 || resp.TotalPages <= page {
			break
		}
		page++
	}
	return codes, nil
}
