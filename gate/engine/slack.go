package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type SlackNotifier struct {
	SlackWebhookURL string
	// defaults to http.DefaultClient
	Client *http.Client
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendEvent(ctx context.Context, evt AuditEvent) error {
	return n.sendSlackMsg(ctx, slackBody(evt))
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}

func slackBody(evt AuditEvent) string {
	var msg string
	switch evt.Kind {
	case EventBan:
		msg = "⚠️ Gatekeeper Ban ⚠️\n"
	case EventOverride:
		msg = "Gatekeeper Override\n"
	case EventFailed:
		msg = "Gatekeeper Verification Failed\n"
	default:
		msg = fmt.Sprintf("Gatekeeper %s\n", evt.Kind)
	}
	msg += fmt.Sprintf("`u/%s` status: `%s`\n", evt.Username, evt.Status)
	if evt.Actor != "" {
		msg += fmt.Sprintf("By: `%s`\n", evt.Actor)
	}
	if evt.ContentID != "" {
		msg += fmt.Sprintf("Content: `%s`\n", evt.ContentID)
	}
	if len(evt.Reasons) > 0 {
		msg += fmt.Sprintf("Reasons: %s\n", strings.Join(evt.Reasons, "; "))
	}
	return msg
}
