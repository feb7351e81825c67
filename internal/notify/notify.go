// Package notify delivers contact-form email notifications via SMTP.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	AdminAddr string
	SiteName  string
}

// Service sends contact notifications
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new notification service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if SMTP delivery is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

func (s *Service) fromHeader() string {
	if s.config.FromName != "" {
		return fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	return s.config.From
}

func (s *Service) siteName() string {
	if s.config.SiteName != "" {
		return s.config.SiteName
	}
	return "Portfolio"
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		s.fromHeader(),
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email with a plain text fallback part
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	boundary := "boundary-folio"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", s.fromHeader())
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

type newMessageData struct {
	SiteName string
	Name     string
	Email    string
	Message  string
}

type replyData struct {
	SiteName string
	Name     string
	Original string
	Reply    string
}

// NotifyNewMessage alerts the site owner that a visitor submitted the
// contact form.
func (s *Service) NotifyNewMessage(name, email, message string) error {
	if s.config.AdminAddr == "" {
		return fmt.Errorf("no admin address configured")
	}

	data := newMessageData{
		SiteName: s.siteName(),
		Name:     name,
		Email:    email,
		Message:  message,
	}

	subject := fmt.Sprintf("New contact message from %s", name)
	html, err := renderTemplate(newMessageEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render new message template: %w", err)
	}

	return s.SendHTMLEmail([]string{s.config.AdminAddr}, subject, html)
}

// SendReply delivers the admin's reply to the visitor who wrote in.
func (s *Service) SendReply(toEmail, toName, originalMessage, reply string) error {
	data := replyData{
		SiteName: s.siteName(),
		Name:     toName,
		Original: originalMessage,
		Reply:    reply,
	}

	subject := fmt.Sprintf("Re: your message to %s", s.siteName())
	html, err := renderTemplate(replyEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render reply template: %w", err)
	}

	return s.SendHTMLEmail([]string{toEmail}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const newMessageEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>New contact message</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .quote { background: #f6f8fa; padding: 12px; border-left: 3px solid #0066cc; white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.SiteName}}</h1>
    </div>

    <h2>New contact message</h2>

    <p><strong>{{.Name}}</strong> ({{.Email}}) wrote:</p>

    <div class="quote">{{.Message}}</div>

    <div class="footer">
        <p>Open the admin inbox to read or reply.</p>
    </div>
</body>
</html>`

const replyEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Reply from {{.SiteName}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #0066cc; padding-bottom: 10px; margin-bottom: 20px; }
        .quote { background: #f6f8fa; padding: 12px; border-left: 3px solid #ccc; white-space: pre-wrap; font-size: 13px; color: #555; }
        .reply { white-space: pre-wrap; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.SiteName}}</h1>
    </div>

    <p>Hi {{.Name}},</p>

    <div class="reply">{{.Reply}}</div>

    <p>You wrote:</p>
    <div class="quote">{{.Original}}</div>

    <div class="footer">
        <p>This is a reply to the message you sent through {{.SiteName}}.</p>
    </div>
</body>
</html>`
