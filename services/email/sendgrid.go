package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/edutrack/backend/core"
)

// SendgridService delivers rendered messages through the SendGrid v3 API.
// Each message is tagged with its template name as a SendGrid category.
type SendgridService struct {
	conf   *core.Config
	client *sendgrid.Client
	from   mail.Address
	logger core.Logger
}

var _ core.EmailService = (*SendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *SendgridService {
	return &SendgridService{
		conf:   conf,
		client: sendgrid.NewSendClient(conf.SendgridApiKey),
		from:   conf.DefaultFromEmail(),
		logger: logger,
	}
}

func (svc *SendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *SendgridService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(svc.conf); err != nil {
		svc.logger.Error("rendering email "+msg.TemplateName, err)
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	res, err := svc.client.Send(svc.build(msg))
	switch {
	case err != nil:
		svc.logger.Error("sending email "+msg.TemplateName, err)
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sending email %s: status %d: %s", msg.TemplateName, res.StatusCode, res.Body))
	default:
		svc.logger.Debug(fmt.Sprintf("email %s sent to %d recipient(s)", msg.TemplateName, len(msg.To)))
	}
}

func (svc *SendgridService) build(msg *core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = "[" + svc.conf.AppName + "] " + msg.Subject
	p.AddTos(toSGEmails(msg.To)...)
	p.AddCCs(toSGEmails(msg.Cc)...)
	p.AddBCCs(toSGEmails(msg.Bcc)...)
	p.SetCustomArg("env", svc.conf.Env)

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail(svc.from.Name, svc.from.Address))
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}
	return m
}

func toSGEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, len(addrs))
	for i, addr := range addrs {
		emails[i] = sgmail.NewEmail(addr.Name, addr.Address)
	}
	return emails
}
