package notifier

import (
	"ceksiak/internal/assert"
	"ceksiak/internal/siak"
	"ceksiak/internal/telemetry"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

const emailSubject = "CekSIAK: course status changed"

const report_email_notify = "email.notify"

type EmailOptions struct {
	Server   string
	Port     int
	Address  string
	Password string
	To       []string
}

// Email sends the notification as a plain text mail.
type Email struct {
	opts EmailOptions
	tel  telemetry.API
}

func NewEmail(opts EmailOptions, tel telemetry.API) Email {
	assert.NotEmptyStr(opts.Server, "smtp server")
	assert.NotEmptyStr(opts.Address, "sender address")
	assert.NotNil(tel, "telemetry")
	if opts.Port == 0 {
		opts.Port = 587
	}
	if len(opts.To) == 0 {
		opts.To = []string{opts.Address}
	}
	return Email{
		opts: opts,
		tel:  telemetry.NewScopedAPI("notifier", tel),
	}
}

func (e Email) message(courses []siak.Course) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("CekSIAK <%s>", e.opts.Address)
	mail.To = e.opts.To
	mail.Subject = emailSubject
	mail.Text = []byte(Format(courses) + "\n")
	return mail
}

func (e Email) Notify(ctx context.Context, courses []siak.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := e.message(courses)
	addr := fmt.Sprintf("%s:%d", e.opts.Server, e.opts.Port)

	err := mail.Send(addr, smtp.PlainAuth("", e.opts.Address, e.opts.Password, e.opts.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		e.tel.ReportBroken(report_email_notify, err)
		return fmt.Errorf("notifier: email: %w", err)
	}

	e.tel.ReportDebug("sent notification", strings.Join(e.opts.To, ", "))
	return nil
}
