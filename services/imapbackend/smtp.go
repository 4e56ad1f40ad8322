package imapbackend

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/internal/enum"
	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/tracing"
)

// SendMessage submits a raw RFC822 message over SMTP. Authentication
// failures are classified so the outbox gives the attempt back instead of
// burning it.
func (b *imapBackend) SendMessage(ctx context.Context, raw []byte, from string, to []string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.SendMessage")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, b.settings.AccountID)
	span.SetTag("recipients", len(to))

	if from == "" {
		err := fmt.Errorf("from address is required")
		tracing.TraceErr(span, err)
		return mailerrors.NewPermanentError("message has no sender", err)
	}
	if len(to) == 0 {
		err := fmt.Errorf("at least one recipient is required")
		tracing.TraceErr(span, err)
		return mailerrors.NewPermanentError("message has no recipients", err)
	}

	addr := fmt.Sprintf("%s:%d", b.settings.SmtpServer, b.settings.SmtpPort)
	auth := smtp.PlainAuth("", b.settings.SmtpUsername, b.settings.SmtpPassword, b.settings.SmtpServer)

	var err error
	switch b.settings.SmtpSecurity {
	case enum.EmailSecuritySSL, enum.EmailSecurityTLS:
		err = b.sendWithExplicitTLS(ctx, addr, auth, from, to, raw)
	case enum.EmailSecurityStartTLS:
		err = b.sendWithSTARTTLS(ctx, addr, auth, from, to, raw)
	default:
		err = smtp.SendMail(addr, auth, from, to, raw)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		return classifySMTPError(err)
	}

	return nil
}

func (b *imapBackend) sendWithSTARTTLS(ctx context.Context, addr string, auth smtp.Auth, from string, recipients []string, raw []byte) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapBackend.sendWithSTARTTLS")
	defer span.Finish()
	span.LogKV("smtp_server", b.settings.SmtpServer)
	span.LogKV("smtp_port", b.settings.SmtpPort)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		err = fmt.Errorf("failed to connect to SMTP server: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, b.settings.SmtpServer)
	if err != nil {
		err = fmt.Errorf("failed to create SMTP client: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: b.settings.SmtpServer,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		err = fmt.Errorf("failed to start TLS: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	if err = client.Auth(auth); err != nil {
		err = fmt.Errorf("SMTP authentication failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	return submit(client, from, recipients, raw)
}

func (b *imapBackend) sendWithExplicitTLS(ctx context.Context, addr string, auth smtp.Auth, from string, recipients []string, raw []byte) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapBackend.sendWithExplicitTLS")
	defer span.Finish()
	span.LogKV("address", addr)

	tlsConfig := &tls.Config{
		ServerName: b.settings.SmtpServer,
	}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		err = fmt.Errorf("failed to connect to SMTP server: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, b.settings.SmtpServer)
	if err != nil {
		err = fmt.Errorf("failed to create SMTP client: %w", err)
		tracing.TraceErr(span, err)
		return err
	}
	defer client.Close()

	if err = client.Auth(auth); err != nil {
		err = fmt.Errorf("SMTP authentication failed: %w", err)
		tracing.TraceErr(span, err)
		return err
	}

	return submit(client, from, recipients, raw)
}

func submit(client *smtp.Client, from string, recipients []string, raw []byte) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL command failed: %w", err)
	}
	for _, recipient := range recipients {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("SMTP RCPT command failed for %s: %w", recipient, err)
		}
	}

	dataWriter, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA command failed: %w", err)
	}
	if _, err := dataWriter.Write(raw); err != nil {
		return fmt.Errorf("failed to write message data: %w", err)
	}
	if err := dataWriter.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// classifySMTPError maps SMTP failures onto the error kinds the outbox
// retry logic branches on. 5xx replies are permanent; auth errors give
// the attempt back.
func classifySMTPError(err error) error {
	message := err.Error()
	switch {
	case strings.Contains(message, "authentication failed"),
		strings.Contains(message, "535 "):
		return mailerrors.NewAuthenticationError("SMTP authentication rejected", err)
	case strings.Contains(message, "certificate"):
		return mailerrors.NewCertificateError("SMTP TLS failure", err)
	case strings.Contains(message, "550 "),
		strings.Contains(message, "551 "),
		strings.Contains(message, "552 "),
		strings.Contains(message, "553 "),
		strings.Contains(message, "554 "):
		return mailerrors.NewPermanentError("SMTP server rejected the message", err)
	default:
		return mailerrors.NewTransientError("SMTP delivery failed", err)
	}
}
