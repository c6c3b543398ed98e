package core

import (
	"bytes"
	"embed"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	//go:embed templates/email/*.txt
	templatesFS embed.FS

	templates    map[string]*texttmpl.Template // {name: *Template}
	templatesErr error
	tmplInit     sync.Once
)

const templatesDir = "templates/email"

type (
	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) Render(conf *Config) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.TemplateName == "" {
		return nil
	}

	tmplInit.Do(parseTemplates) // only executed once, on the first render
	if templatesErr != nil {
		return templatesErr
	}
	tmpl, ok := templates[m.TemplateName]
	if !ok {
		return errors.Errorf("unknown email template %q", m.TemplateName)
	}

	var buff bytes.Buffer
	data := ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}
	if err := tmpl.ExecuteTemplate(&buff, m.TemplateName+".txt", data); err != nil {
		return errors.Wrapf(err, "executing template %q", m.TemplateName)
	}
	m.TextContent = strings.TrimSpace(buff.String())
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" }

// ParseEmailTemplates parses the embedded templates eagerly so that broken templates are reported at startup.
func ParseEmailTemplates(logger Logger) {
	tmplInit.Do(parseTemplates)
	if templatesErr != nil {
		logger.Error("parsing email templates", templatesErr)
	}
}

func parseTemplates() {
	templates = make(map[string]*texttmpl.Template)

	fps, err := fs.Glob(templatesFS, path.Join(templatesDir, "*.txt"))
	if err != nil {
		templatesErr = errors.Wrap(err, "listing email templates")
		return
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		tmpl, err := texttmpl.ParseFS(templatesFS, path.Join(templatesDir, "_base.txt"), fp)
		if err != nil {
			templatesErr = errors.Wrapf(err, "parsing email template %q", fname)
			return
		}
		templates[strings.TrimSuffix(fname, ".txt")] = tmpl.Option("missingkey=error")
	}
}
