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
	model2 "github.com/blnkfinance/conciliator/api/model"
	"github.com/blnkfinance/conciliator/internal/apierror"
	"github.com/gin-gonic/gin"
)

// ListJobs returns the names of the jobs that can be triggered.
func (a Api) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": conciliator.Jobs()})
}

// EnqueueJob queues one run of the job named in the route for the workers.
//
// Responses:
// - 202 Accepted: The run was queued.
// - 409 Conflict: The same job is already queued.
// - 400 Bad Request: Unknown job.
func (a Api) EnqueueJob(c *gin.Context) {
	name := c.Param("name")

	taskID, err := a.service.EnqueueJob(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	if taskID == conciliator.StatusSkipped {
		c.JSON(http.StatusConflict, model2.JobResponse{Job: name, Status: conciliator.StatusSkipped})
		return
	}

	c.JSON(http.StatusAccepted, model2.JobResponse{Job: name, Status: "Queued", TaskID: taskID})
}

// RunJob runs the job named in the route in the request and reports its final status.
// The optional wait query parameter (e.g. "30s") is how long to wait for a running
// instance of the same job to finish.
func (a Api) RunJob(c *gin.Context) {
	var wait time.Duration
	if raw := c.Query("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "wait must be a positive duration such as 30s"})
			return
		}
		wait = d
	}
	a.runJob(c, c.Param("name"), wait)
}

func (a Api) runJob(c *gin.Context, name string, wait time.Duration) {
	// a run started over HTTP finishes even if the client goes away
	status, err := a.service.RunJobWait(context.WithoutCancel(c.Request.Context()), name, wait)
	if err != nil {
		resp := model2.JobResponse{Job: name, Status: status, Error: err.Error()}
		c.JSON(apierror.MapErrorToHTTPStatus(err), resp)
		return
	}
	if status == conciliator.StatusSkipped {
		c.JSON(http.StatusConflict, model2.JobResponse{Job: name, Status: status})
		return
	}
	c.JSON(http.StatusOK, model2.JobResponse{Job: name, Status: status})
}
