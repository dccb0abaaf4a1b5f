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
	"fmt"
	"net/http"
	"time"

	"github.com/blnkfinance/conciliator/config"
	"github.com/blnkfinance/conciliator/internal/request"
	"github.com/sirupsen/logrus"
)

const slackTimeout = 5 * time.Second

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func buildSlackMessage(project, job string, err error, at time.Time) slackMessage {
	return slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: fmt.Sprintf("Error From %s 🐞", project), Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Job:*\n%s", job)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n%v", err)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%v", at.Format(time.RFC822))}}},
	}}
}

// SlackNotification posts the failure of job to the given webhook.
func SlackNotification(ctx context.Context, webhookURL, project, job string, systemError error) error {
	payload, err := request.ToJsonReq(buildSlackMessage(project, job, systemError, time.Now()))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, payload)
	if err != nil {
		return err
	}

	_, err = request.Call(request.NewClient(slackTimeout, slackTimeout), req, nil)
	return err
}

// NotifyError logs a job failure and, when a Slack webhook is configured, reports it there.
// It does not block the caller.
func NotifyError(job string, systemError error) {
	go func() {
		logrus.WithField("job", job).Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			logrus.Warn(err)
			return
		}
		if conf.Notification.Slack.WebhookUrl == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*slackTimeout)
		defer cancel()
		if err := SlackNotification(ctx, conf.Notification.Slack.WebhookUrl, conf.ProjectName, job, systemError); err != nil {
			logrus.WithError(err).Warn("failed to send slack notification")
		}
	}()
}
