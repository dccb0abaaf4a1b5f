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

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blnkfinance/conciliator/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSlackMessage(t *testing.T) {
	at := time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC)
	msg := buildSlackMessage("Conciliator", "reconciliation", errors.New("store unavailable"), at)

	require.Len(t, msg.Blocks, 4)
	assert.Equal(t, "header", msg.Blocks[0].Type)
	assert.Equal(t, "Error From Conciliator 🐞", msg.Blocks[0].Text.Text)
	assert.Equal(t, "*Job:*\nreconciliation", msg.Blocks[1].Fields[0].Text)
	assert.Equal(t, "*Error:*\nstore unavailable", msg.Blocks[2].Fields[0].Text)
	assert.Contains(t, msg.Blocks[3].Fields[0].Text, "01 Dec 24")
}

func TestSlackNotification(t *testing.T) {
	received := make(chan slackMessage, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg slackMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received <- msg
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := SlackNotification(context.Background(), server.URL, "Conciliator", "ingestion", errors.New("boom"))
	require.NoError(t, err)

	msg := <-received
	assert.Equal(t, "*Job:*\ningestion", msg.Blocks[1].Fields[0].Text)
}

func TestSlackNotification_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := SlackNotification(context.Background(), server.URL, "Conciliator", "ingestion", errors.New("boom"))
	assert.Error(t, err)
}

func TestNotifyError_PostsWhenConfigured(t *testing.T) {
	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	config.MockConfig(&config.Configuration{
		ProjectName:  "Conciliator",
		Notification: config.Notification{Slack: config.SlackWebhook{WebhookUrl: server.URL}},
	})

	NotifyError("sync_fee", errors.New("boom"))

	select {
	case <-called:
	case <-time.After(3 * time.Second):
		t.Fatal("expected slack webhook to be called")
	}
}
