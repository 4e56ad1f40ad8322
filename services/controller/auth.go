package controller

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailsync/internal/enum"
	"github.com/customeros/mailsync/internal/models"
	"github.com/customeros/mailsync/internal/tracing"
)

// CheckAuthenticationProblem reports whether a connection attempt is
// doomed before it starts: credentials are missing, or the account is
// configured for OAuth without a token on file.
func (s *ControllerService) CheckAuthenticationProblem(ctx context.Context, account *models.Account, incoming bool) bool {
	authType := account.IncomingAuthType
	hasCredentials := account.HasIncomingCredentials
	if !incoming {
		authType = account.OutgoingAuthType
		hasCredentials = account.HasOutgoingCredentials
	}

	if !hasCredentials {
		return true
	}
	if authType == enum.AuthXOAuth2 && account.OAuthState == nil {
		return true
	}
	return false
}

// handleAuthenticationFailure reacts to a rejected login. An account
// flagged for OAuth migration is switched to XOAUTH2 once instead of
// surfacing the error; anything else raises the auth notification.
func (s *ControllerService) handleAuthenticationFailure(ctx context.Context, account *models.Account, incoming bool) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ControllerService.handleAuthenticationFailure")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, account.ID)

	if account.MigrateToOAuth {
		s.log.Infof("Authentication failed for account %s, migrating to OAuth", account.ID)
		account.MigrateToOAuth = false
		account.IncomingAuthType = enum.AuthXOAuth2
		account.OutgoingAuthType = enum.AuthXOAuth2
		if err := s.repositories.AccountRepository.SaveAccount(ctx, account); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("Failed to persist OAuth migration for account %s: %v", account.ID, err)
		}
		return
	}

	s.notifier.ShowAuthenticationErrorNotification(ctx, account, incoming)
}
