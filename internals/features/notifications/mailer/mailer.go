package mailer

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"coursepay_backend/internals/configs"
)

// Mailer delivers one plain-text message.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

/* =======================================================================
   SMTP
======================================================================= */

type SMTPMailer struct {
	cfg  configs.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg configs.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) SendMail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return m.send(addr, auth, m.cfg.From, []string{to}, BuildMessage(m.cfg.From, to, subject, body, time.Now()))
}

// BuildMessage renders an RFC 5322 text/plain message.
func BuildMessage(from, to, subject, body string, date time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerSafe(from) + "\r\n")
	b.WriteString("To: " + headerSafe(to) + "\r\n")
	b.WriteString("Subject: " + headerSafe(subject) + "\r\n")
	b.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

// headerSafe drops CR/LF so user-supplied values cannot add headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

/* =======================================================================
   Log (no SMTP configured)
======================================================================= */

type LogMailer struct{}

func (LogMailer) SendMail(_ context.Context, to, subject, body string) error {
	log.Printf("[MAILER] (log only) to=%s subject=%q bytes=%d", to, subject, len(body))
	return nil
}

// New picks SMTP when configured, the log mailer otherwise.
func New(cfg configs.SMTPConfig) Mailer {
	if cfg.IsConfigured() {
		log.Printf("[MAILER] SMTP %s:%d from=%s", cfg.Host, cfg.Port, cfg.From)
		return NewSMTPMailer(cfg)
	}
	log.Printf("[MAILER] SMTP_HOST not set, notifications are logged only")
	return LogMailer{}
}

/* =======================================================================
   Dispatcher
======================================================================= */

// Dispatcher sends mail in the background. Send never blocks the caller and
// never reports an error; failures are logged.
type Dispatcher struct {
	mailer  Mailer
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(m Mailer, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{mailer: m, timeout: timeout}
}

func (d *Dispatcher) Send(recipient, subject, body string) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		log.Printf("[MAILER] empty recipient, skipping %q", subject)
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[MAILER] ❌ panic sending to %s: %v", recipient, r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.mailer.SendMail(ctx, recipient, subject, body); err != nil {
			log.Printf("[MAILER] ❌ send to %s failed: %v", recipient, err)
			return
		}
		log.Printf("[MAILER] ✅ sent %q to %s", subject, recipient)
	}()
}

// Wait blocks until in-flight sends finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mailer: %w", ctx.Err())
	}
}
