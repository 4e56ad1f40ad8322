package repository

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrFolderNotFound  = errors.New("folder not found")
	ErrMessageNotFound         = errors.New("message not found")
	ErrMailboxSettingsNotFound = errors.New("mailbox settings not found")
	ErrInvalidInput            = errors.New("invalid input parameters")
)
