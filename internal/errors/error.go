package errors

import (
	"github.com/pkg/errors"
)

var (
	// common errors
	ErrAccountMissing    = errors.New("account is missing")
	ErrFolderNotFound    = errors.New("folder not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrConnectionTimeout = errors.New("connection timeout")

	// controller errors
	ErrUnsyncedMessage      = errors.New("cannot operate on a message that was never synced")
	ErrOperationUnsupported = errors.New("operation not supported by backend")
)

// ErrorKind classifies a failure for retry and notification routing.
type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindCertificate    ErrorKind = "certificate"
	KindPermanent      ErrorKind = "permanent"
	KindTransient      ErrorKind = "transient"
	KindInternal       ErrorKind = "internal"
)

// MailError carries the failure classification across the backend boundary.
// Retryability is an explicit flag on the value, not a type hierarchy.
type MailError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *MailError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *MailError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a later attempt may succeed. Authentication and
// certificate failures are retryable once the account is fixed; only
// explicitly permanent failures are not.
func (e *MailError) Retryable() bool {
	return e.Kind != KindPermanent
}

func NewAuthenticationError(message string, cause error) *MailError {
	return &MailError{Kind: KindAuthentication, Message: message, Cause: cause}
}

func NewCertificateError(message string, cause error) *MailError {
	return &MailError{Kind: KindCertificate, Message: message, Cause: cause}
}

func NewPermanentError(message string, cause error) *MailError {
	return &MailError{Kind: KindPermanent, Message: message, Cause: cause}
}

func NewTransientError(message string, cause error) *MailError {
	return &MailError{Kind: KindTransient, Message: message, Cause: cause}
}

func kindOf(err error) (ErrorKind, bool) {
	var mailErr *MailError
	if errors.As(err, &mailErr) {
		return mailErr.Kind, true
	}
	return "", false
}

func IsAuthenticationError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindAuthentication
}

func IsCertificateError(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindCertificate
}

func IsPermanent(err error) bool {
	kind, ok := kindOf(err)
	return ok && kind == KindPermanent
}

// IsMailError reports whether err was classified at the backend boundary.
// Anything else reaching the replay loop is a programming error.
func IsMailError(err error) bool {
	var mailErr *MailError
	return errors.As(err, &mailErr)
}
