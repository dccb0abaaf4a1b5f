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

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/blnkfinance/conciliator"
	model2 "github.com/blnkfinance/conciliator/api/model"
	"github.com/gin-gonic/gin"
)

// IngestTransactions pulls ERP receivables for the requested window right away. Receivables
// already stored are ignored, so overlapping windows are safe.
//
// Responses:
// - 200 OK: The ingestion counts.
// - 400 Bad Request: Malformed window.
func (a Api) IngestTransactions(c *gin.Context) {
	var req model2.IngestTransactions
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.ValidateIngestTransactions(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from, to, err := req.Window(a.today(), a.conf.Jobs.IngestionLookbackDays)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.service.IngestTransactions(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ReconcileTransactions runs the reconciliation job in the request. It shares the job lock
// with the scheduled runs.
func (a Api) ReconcileTransactions(c *gin.Context) {
	a.runJob(c, conciliator.JobReconciliation, 0)
}

// GetTransaction returns one stored transaction.
func (a Api) GetTransaction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed || id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	txn, err := a.service.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}
