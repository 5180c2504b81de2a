// Package notify delivers batch capture summaries to an operations Slack
// channel via an incoming webhook.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/Fechomap/cargas-gas-sub000/internal/bot"
	"github.com/Fechomap/cargas-gas-sub000/internal/models"
)

// poster abstracts the webhook call, enabling test mocks.
type poster func(ctx context.Context, url string, msg *slackapi.WebhookMessage) error

// SlackNotifier posts one message per finished or cancelled batch run.
type SlackNotifier struct {
	webhookURL string
	channel    string
	post       poster
}

// SlackNotifierOpts holds parameters for creating a SlackNotifier.
type SlackNotifierOpts struct {
	WebhookURL string
	Channel    string // optional channel override
	// For testing: inject a mock poster instead of the real webhook call.
	Poster poster
}

// NewSlackNotifier creates a SlackNotifier.
func NewSlackNotifier(opts SlackNotifierOpts) (*SlackNotifier, error) {
	if opts.Poster == nil && opts.WebhookURL == "" {
		return nil, fmt.Errorf("notify: webhook URL is required")
	}
	post := opts.Poster
	if post == nil {
		post = slackapi.PostWebhookContext
	}
	return &SlackNotifier{
		webhookURL: opts.WebhookURL,
		channel:    opts.Channel,
		post:       post,
	}, nil
}

// NotifyBatchSummary implements bot.SummaryNotifier.
func (n *SlackNotifier) NotifyBatchSummary(ctx context.Context, summary bot.BatchSummary) error {
	msg := &slackapi.WebhookMessage{
		Channel: n.channel,
		Text:    formatSummary(summary),
	}
	if err := n.post(ctx, n.webhookURL, msg); err != nil {
		return fmt.Errorf("notify: post batch summary: %w", err)
	}
	log.Printf("notify: batch summary posted [tenant=%d type=%s]", summary.TenantID, summary.LogType)
	return nil
}

// formatSummary renders the Slack text for a batch run.
func formatSummary(summary bot.BatchSummary) string {
	var b strings.Builder

	label := "Inicio de turno"
	if summary.LogType == models.LogTypeShiftEnd {
		label = "Fin de turno"
	}
	if summary.Cancelled {
		fmt.Fprintf(&b, ":octagonal_sign: Captura cancelada — %s del %s\n", label, summary.Date.Format("2006-01-02"))
	} else {
		fmt.Fprintf(&b, ":white_check_mark: Captura completada — %s del %s\n", label, summary.Date.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Flota %d: %d de %d registradas, %d omitidas", summary.TenantID, summary.Processed, summary.Total, summary.Omitted)
	if summary.Remaining > 0 {
		fmt.Fprintf(&b, ", %d pendientes", summary.Remaining)
	}
	return b.String()
}
