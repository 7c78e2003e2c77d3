// Package notifsvc delivers progression events to learners.
package notifsvc

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/progress"
)

// ResolverFunc maps a user id to an email address. The identity service
// owns user records; this module only ever sees opaque ids.
type ResolverFunc func(userID string) (mail.Address, bool)

type emailNotifier struct {
	mail    core.EmailService
	resolve ResolverFunc
	logger  core.Logger
}

var _ progress.Notifier = (*emailNotifier)(nil)

func NewEmailNotifier(mailSvc core.EmailService, resolve ResolverFunc, logger core.Logger) *emailNotifier {
	return &emailNotifier{
		mail:    mailSvc,
		resolve: resolve,
		logger:  logger,
	}
}

// Notify composes one digest email for the batch of events. EmailService
// sends asynchronously so the progression path is never blocked.
func (n *emailNotifier) Notify(userID string, events []progress.Event) {
	if len(events) == 0 {
		return
	}
	addr, ok := n.resolve(userID)
	if !ok {
		if n.logger != nil {
			n.logger.Debug(fmt.Sprintf("no email address for user %s, dropping %d events", userID, len(events)))
		}
		return
	}

	n.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{addr},
		Subject: subject(events),
		BodyStr: body(events),
	})
}

func subject(events []progress.Event) string {
	// lead with the most celebratory event
	for _, ev := range events {
		if ev.Kind == progress.EventLevelUp {
			return fmt.Sprintf("You reached level %d!", ev.Level)
		}
	}
	for _, ev := range events {
		if ev.Kind == progress.EventAchievementUnlocked {
			return "New achievement unlocked!"
		}
	}
	return fmt.Sprintf("%d day streak, keep it going!", events[0].Streak)
}

func body(events []progress.Event) string {
	lines := make([]string, 0, len(events)+1)
	lines = append(lines, "Great work! Here is what you just earned:")
	for _, ev := range events {
		switch ev.Kind {
		case progress.EventLevelUp:
			lines = append(lines, fmt.Sprintf("- You advanced to level %d", ev.Level))
		case progress.EventAchievementUnlocked:
			lines = append(lines, fmt.Sprintf("- Achievement unlocked: %s", ev.AchievementCode))
		case progress.EventStreakMilestone:
			lines = append(lines, fmt.Sprintf("- You hit a %d day streak", ev.Streak))
		}
	}
	return strings.Join(lines, "\n")
}
