package dto

// CheckMail asks the controller to run a full mail check for one account.
type CheckMail struct {
	AccountID string `json:"accountId"`
}

// SyncFolder asks the controller to synchronize a single folder.
type SyncFolder struct {
	AccountID string `json:"accountId"`
	FolderID  string `json:"folderId"`
}

// SendPendingMail asks the controller to drain the outbox of one account.
type SendPendingMail struct {
	AccountID string `json:"accountId"`
}
