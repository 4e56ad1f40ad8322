package errors

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMailErrorClassification(t *testing.T) {
	authErr := NewAuthenticationError("login rejected", nil)
	certErr := NewCertificateError("certificate expired", nil)
	permErr := NewPermanentError("mailbox gone", nil)
	transErr := NewTransientError("connection dropped", nil)

	assert.True(t, IsAuthenticationError(authErr))
	assert.False(t, IsAuthenticationError(certErr))

	assert.True(t, IsCertificateError(certErr))
	assert.False(t, IsCertificateError(transErr))

	assert.True(t, IsPermanent(permErr))
	assert.False(t, IsPermanent(transErr))

	for _, err := range []error{authErr, certErr, permErr, transErr} {
		assert.True(t, IsMailError(err))
	}
	assert.False(t, IsMailError(fmt.Errorf("plain error")))
	assert.False(t, IsMailError(nil))
}

func TestMailErrorRetryable(t *testing.T) {
	assert.True(t, NewAuthenticationError("login rejected", nil).Retryable())
	assert.True(t, NewCertificateError("certificate expired", nil).Retryable())
	assert.True(t, NewTransientError("connection dropped", nil).Retryable())
	assert.False(t, NewPermanentError("mailbox gone", nil).Retryable())
}

func TestMailErrorWrapping(t *testing.T) {
	cause := fmt.Errorf("tcp reset")
	err := NewTransientError("connection dropped", cause)

	assert.Equal(t, "connection dropped: tcp reset", err.Error())
	assert.Equal(t, cause, pkgerrors.Cause(err.Unwrap()))

	// Classification survives further wrapping.
	wrapped := pkgerrors.Wrap(err, "sync pass")
	assert.True(t, IsMailError(wrapped))
	assert.False(t, IsPermanent(wrapped))

	assert.Equal(t, "mailbox gone", NewPermanentError("mailbox gone", nil).Error())
}
