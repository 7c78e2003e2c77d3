package notifsvc

import (
	"sync"

	"github.com/mzalendo/maendeleo/core/progress"
)

// DummyNotifier records notifications for assertions in tests.
type DummyNotifier struct {
	mutex  sync.Mutex
	Events map[string][]progress.Event // keyed by user id
}

var _ progress.Notifier = (*DummyNotifier)(nil)

func NewDummyNotifier() *DummyNotifier {
	return &DummyNotifier{Events: make(map[string][]progress.Event)}
}

func (n *DummyNotifier) Notify(userID string, events []progress.Event) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.Events[userID] = append(n.Events[userID], events...)
}
