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
	"strings"

	"github.com/blnkfinance/conciliator/model"
)

type listAccountsParam struct {
	Page              int    `json:"pagina"`
	PerPage           int    `json:"registros_por_pagina"`
	OnlyImportedByAPI string `json:"apenas_importado_api"`
}

type bankAccount struct {
	ID          int64  `json:"nCodCC"`
	Description string `json:"descricao"`
}

type listAccountsResponse struct {
	Accounts []bankAccount `json:"ListarContasCorrentes"`
}

// ListAccounts returns the first hundred ERP bank accounts.
func (c *Client) ListAccounts(ctx context.Context) ([]model.ERPAccount, error) {
	var resp listAccountsResponse
	err := c.call(ctx, resourceBankAccounts, "ListarContasCorrentes", listAccountsParam{
		Page:              1,
		PerPage:           100,
		OnlyImportedByAPI: "N",
	}, &resp)
	if err != nil {
		return nil, upstream("failed to list erp bank accounts", err)
	}

	accounts := make([]model.ERPAccount, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		description := strings.TrimSpace(a.Description)
		if description == "" {
			description = model.DefaultOmieAccountDescription
		}
		accounts = append(accounts, model.ERPAccount{OmieID: a.ID, Description: description})
	}
	return accounts, nil
}
