package emailsvc

import (
	"sync"

	"github.com/mkadiri/kazi/core"
)

// DummyService records sent messages instead of delivering them. Tests only.
type DummyService struct {
	mutex    sync.Mutex
	messages []core.EmailMessage
}

var _ core.EmailService = (*DummyService)(nil)

func NewDummyService() *DummyService {
	return &DummyService{}
}

func (svc *DummyService) SendMessages(messages ...*core.EmailMessage) {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	for _, msg := range messages {
		if msg.HasRecipients() && msg.HasContent() {
			svc.messages = append(svc.messages, *msg)
		}
	}
}

// SentMessages returns a copy of everything recorded so far.
func (svc *DummyService) SentMessages() []core.EmailMessage {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	out := make([]core.EmailMessage, len(svc.messages))
	copy(out, svc.messages)
	return out
}
