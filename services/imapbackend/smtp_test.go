package imapbackend

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	mailerrors "github.com/customeros/mailsync/internal/errors"
)

func TestClassifySMTPError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"authentication failed", fmt.Errorf("535 5.7.8 authentication failed"), mailerrors.IsAuthenticationError},
		{"535 reply code", fmt.Errorf("535 5.7.8 username and password not accepted"), mailerrors.IsAuthenticationError},
		{"certificate problem", fmt.Errorf("x509: certificate signed by unknown authority"), mailerrors.IsCertificateError},
		{"550 mailbox unavailable", fmt.Errorf("550 requested action not taken: mailbox unavailable"), mailerrors.IsPermanent},
		{"554 transaction failed", fmt.Errorf("554 transaction failed"), mailerrors.IsPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifySMTPError(tt.err)
			assert.True(t, tt.check(classified))
			assert.True(t, mailerrors.IsMailError(classified))
		})
	}

	t.Run("anything else is transient", func(t *testing.T) {
		classified := classifySMTPError(fmt.Errorf("451 greylisted, try again later"))
		assert.True(t, mailerrors.IsMailError(classified))
		assert.False(t, mailerrors.IsPermanent(classified))
		assert.False(t, mailerrors.IsAuthenticationError(classified))
		assert.False(t, mailerrors.IsCertificateError(classified))
	})
}
