package emailsvc

import (
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/arifa/core"
)

var (
	// SentMessages records everything "sent" in debug/test mode.
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// consoleService writes messages to stdout instead of delivering them.
type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	logger           core.Logger
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		logger:           logger,
	}
}

func (svc consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		svc.sendMessage(msg)
	}
}

func (svc consoleService) sendMessage(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
		return
	}
	if msg.HasRecipients() && msg.HasContent() {
		svc.send(*msg)
		mu.Lock()
		SentMessages = append(SentMessages, *msg)
		mu.Unlock()
	}
}

func (svc consoleService) send(msg core.EmailMessage) {
	body := new(strings.Builder)

	tos := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		tos = append(tos, to.String())
	}

	fmt.Fprintln(body, "From:", svc.defaultFromEmail.String())
	fmt.Fprintln(body, "To:", strings.Join(tos, ", "))
	fmt.Fprintln(body, "Subject:", svc.subjPrefix+msg.Subject)
	fmt.Fprintln(body, "Date:", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintln(body)
	if msg.TextContent != "" {
		fmt.Fprintln(body, msg.TextContent)
	} else {
		fmt.Fprintln(body, msg.HTMLContent)
	}
	fmt.Fprintln(body, strings.Repeat("-", 79))

	fmt.Print(body.String())
}

// ClearSentMessages resets the test inbox.
func ClearSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}
