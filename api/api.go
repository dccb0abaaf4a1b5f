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
	"context"
	"net/http"
	"time"

	"github.com/blnkfinance/conciliator"
	"github.com/blnkfinance/conciliator/api/middleware"
	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/blnkfinance/conciliator/model"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Service is the part of the engine the HTTP layer drives.
type Service interface {
	EnqueueJob(ctx context.Context, job string) (string, error)
	RunJobWait(ctx context.Context, job string, wait time.Duration) (string, error)
	IngestTransactions(ctx context.Context, from, to time.Time) (conciliator.IngestionResult, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
}

type Api struct {
	service Service
	conf    *config.Configuration
	router  *gin.Engine
	now     func() time.Time
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.GET("/jobs", a.ListJobs)
	router.POST("/jobs/:name", a.EnqueueJob)
	router.POST("/jobs/:name/run", a.RunJob)

	router.POST("/transactions/omie", a.IngestTransactions)
	router.PATCH("/transactions/pagarme", a.ReconcileTransactions)
	router.GET("/transactions/:id", a.GetTransaction)
	return a.router
}

func NewAPI(service Service) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.New()
	r.Use(gin.Recovery(), gin.Logger())
	if conf.EnableTelemetry {
		r.Use(otelgin.Middleware(conf.ProjectName))
	}
	r.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	return &Api{service: service, conf: conf, router: r, now: time.Now}
}

// today is the current date at midnight UTC.
func (a Api) today() time.Time {
	return model.Date(a.now().UTC())
}

// respondError writes err with the HTTP status of its error code.
func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}
