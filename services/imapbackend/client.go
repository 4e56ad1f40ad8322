package imapbackend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	mailerrors "github.com/customeros/mailsync/internal/errors"
	"github.com/customeros/mailsync/internal/tracing"
)

// connect dials the IMAP server and logs in. Errors are classified so the
// controller can tell a bad password from a flaky network.
func (b *imapBackend) connect(ctx context.Context) (*client.Client, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapBackend.connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("server", b.settings.ImapServer)
	span.SetTag("port", b.settings.ImapPort)
	span.SetTag("tls", b.settings.ImapTLS)

	serverAddr := fmt.Sprintf("%s:%d", b.settings.ImapServer, b.settings.ImapPort)

	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: connectTimeout,
	}

	var c *client.Client
	var err error
	if b.settings.ImapTLS {
		tlsConfig := &tls.Config{
			ServerName: b.settings.ImapServer,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		tracing.TraceErr(span, err)
		if isCertificateError(err) {
			return nil, mailerrors.NewCertificateError(fmt.Sprintf("failed to connect to %s", serverAddr), err)
		}
		return nil, mailerrors.NewTransientError(fmt.Sprintf("failed to connect to %s", serverAddr), err)
	}

	c.Timeout = connectTimeout
	if err := c.Login(b.settings.ImapUsername, b.settings.ImapPassword); err != nil {
		_ = c.Logout()
		tracing.TraceErr(span, err)
		return nil, mailerrors.NewAuthenticationError(fmt.Sprintf("failed to login as %s", b.settings.ImapUsername), err)
	}
	c.Timeout = 0

	b.log.Infof("Connected account %s to %s", b.settings.AccountID, serverAddr)
	return c, nil
}

// getClient returns the pooled client for the account, dialing a new one
// when there is none or the existing one no longer answers.
func (b *imapBackend) getClient(ctx context.Context) (*client.Client, error) {
	s := b.service
	accountID := b.settings.AccountID

	s.clientsMutex.RLock()
	c, exists := s.clients[accountID]
	s.clientsMutex.RUnlock()

	if exists {
		if err := c.Noop(); err == nil {
			return c, nil
		} else {
			b.log.Warnf("Existing IMAP connection for account %s is broken: %v", accountID, err)
			s.clientsMutex.Lock()
			delete(s.clients, accountID)
			s.clientsMutex.Unlock()
		}
	}

	c, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}

	s.clientsMutex.Lock()
	s.clients[accountID] = c
	s.clientsMutex.Unlock()

	return c, nil
}

// dropClient discards the pooled connection after a protocol-level
// failure so the next operation starts clean.
func (b *imapBackend) dropClient() {
	s := b.service
	s.clientsMutex.Lock()
	if c, ok := s.clients[b.settings.AccountID]; ok {
		delete(s.clients, b.settings.AccountID)
		c.Timeout = logoutTimeout
		_ = c.Logout()
	}
	s.clientsMutex.Unlock()
}

func isCertificateError(err error) bool {
	if err == nil {
		return false
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	return strings.Contains(err.Error(), "certificate")
}
