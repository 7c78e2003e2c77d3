package notifsvc

import (
	"net/mail"
	"strings"
	"sync"
	"testing"

	"github.com/mzalendo/maendeleo/core"
	"github.com/mzalendo/maendeleo/core/progress"
)

type captureMail struct {
	mutex    sync.Mutex
	messages []*core.EmailMessage
}

func (m *captureMail) SendMessages(messages ...*core.EmailMessage) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.messages = append(m.messages, messages...)
}

func TestEmailNotifier(t *testing.T) {
	mailSvc := &captureMail{}
	resolve := func(userID string) (mail.Address, bool) {
		if userID == "known" {
			return mail.Address{Name: "Known", Address: "known@test.test"}, true
		}
		return mail.Address{}, false
	}
	n := NewEmailNotifier(mailSvc, resolve, nil)

	events := []progress.Event{
		{Kind: progress.EventStreakMilestone, Streak: 7},
		{Kind: progress.EventLevelUp, Level: 3},
		{Kind: progress.EventAchievementUnlocked, AchievementCode: "STREAK_7"},
	}
	n.Notify("known", events)

	if len(mailSvc.messages) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(mailSvc.messages))
	}
	msg := mailSvc.messages[0]
	if msg.To[0].Address != "known@test.test" {
		t.Errorf("To = %v", msg.To)
	}
	if msg.Subject != "You reached level 3!" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	for _, want := range []string{"level 3", "STREAK_7", "7 day streak"} {
		if !strings.Contains(msg.BodyStr, want) {
			t.Errorf("body missing %q:\n%s", want, msg.BodyStr)
		}
	}

	// unknown users and empty batches are dropped
	n.Notify("unknown", events)
	n.Notify("known", nil)
	if len(mailSvc.messages) != 1 {
		t.Errorf("messages sent = %d, want still 1", len(mailSvc.messages))
	}
}
