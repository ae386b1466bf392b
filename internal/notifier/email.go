package notifier

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
)

// EmailConfig holds SMTP settings.
type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func (c EmailConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if c.Port == 0 {
		return fmt.Errorf("smtp port is required")
	}
	if c.From == "" {
		return fmt.Errorf("smtp from address is required")
	}
	return nil
}

// EmailNotifier sends plain-text notification mail over SMTP.
type EmailNotifier struct {
	config EmailConfig
}

func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}
	return &EmailNotifier{config: config}, nil
}

func (e *EmailNotifier) Name() string { return "email" }

func (e *EmailNotifier) Send(ctx context.Context, n Notification) error {
	subject, body := render(n)
	msg := e.buildMessage(n.To, subject, body)
	addr := net.JoinHostPort(e.config.Host, strconv.Itoa(e.config.Port))
	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	}
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.config.From, n.To, msg)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *EmailNotifier) Close() error { return nil }

func (e *EmailNotifier) buildMessage(to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func render(n Notification) (subject, body string) {
	switch n.Kind {
	case KindInvitation:
		subject = fmt.Sprintf("You have been invited to %s", n.ProjectName)
		body = fmt.Sprintf("You were invited to join the project %q as %s.\nAccept with token: %s",
			n.ProjectName, n.Data["role"], n.Data["token"])
	case KindKicked:
		subject = fmt.Sprintf("You were removed from %s", n.ProjectName)
		body = fmt.Sprintf("You no longer participate in the project %q.", n.ProjectName)
	case KindRoleUpdated:
		subject = fmt.Sprintf("Your role in %s changed", n.ProjectName)
		body = fmt.Sprintf("Your role in the project %q is now %s.", n.ProjectName, n.Data["role"])
	case KindProjectDeleted:
		subject = fmt.Sprintf("Project %s was deleted", n.ProjectName)
		body = fmt.Sprintf("The project %q has been deleted by its owner.", n.ProjectName)
	case KindIssueAssigned:
		subject = fmt.Sprintf("An issue in %s was assigned to you", n.ProjectName)
		body = fmt.Sprintf("The issue %q in project %q is now assigned to you.", n.Data["issue_title"], n.ProjectName)
	default:
		subject = fmt.Sprintf("Update from %s", n.ProjectName)
		body = fmt.Sprintf("Something changed in the project %q.", n.ProjectName)
	}
	return subject, body
}
