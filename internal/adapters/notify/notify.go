// Package notify delivers user-facing notifications.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
	"github.com/emiliopalmerini/ytdetox/internal/util"
)

// Desktop shows notifications through the OS notification center.
type Desktop struct{}

var _ ports.Notifier = Desktop{}

func NewDesktop() Desktop {
	beeep.AppName = "ytdetox"
	return Desktop{}
}

func (Desktop) Notify(title, body string) error {
	if err := beeep.Notify(title, body, ""); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// NoOp drops every notification.
type NoOp struct{}

var _ ports.Notifier = NoOp{}

func (NoOp) Notify(string, string) error { return nil }

// WeeklySummary formats the notification for a weekly summary.
func WeeklySummary(s domain.WeeklySummary) (title, body string) {
	title = "Your week on YouTube"
	body = fmt.Sprintf("%s this week (%s vs last week), %d videos.",
		util.FormatSeconds(s.ThisWeek.TotalSeconds),
		util.FormatChange(s.ChangePercent),
		s.ThisWeek.VideoCount,
	)
	if len(s.TopChannels) > 0 {
		body += fmt.Sprintf(" Top channel: %s (%d min).", s.TopChannels[0].Channel, s.TopChannels[0].Minutes)
	}
	return title, body
}
