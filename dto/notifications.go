package dto

// Notification kinds published on the notifications exchange. Consumers
// (push gateways, UIs) decide how to present them.
const (
	NotificationKindNewMail      = "new_mail"
	NotificationKindFetchingMail = "fetching_mail"
	NotificationKindSendFailed   = "send_failed"
	NotificationKindAuthError    = "authentication_error"
	NotificationKindCertError    = "certificate_error"
	NotificationKindClear        = "clear"
)

type NewMailNotification struct {
	AccountID string `json:"accountId"`
	FolderID  string `json:"folderId"`
	MessageID string `json:"messageId"`
	Subject   string `json:"subject"`
	From      string `json:"from"`
	Silent    bool   `json:"silent"`
}

type FetchingMailNotification struct {
	AccountID  string `json:"accountId"`
	FolderID   string `json:"folderId,omitempty"`
	FolderName string `json:"folderName,omitempty"`
}

type SendFailedNotification struct {
	AccountID string `json:"accountId"`
	Reason    string `json:"reason,omitempty"`
}

type AuthErrorNotification struct {
	AccountID string `json:"accountId"`
	Incoming  bool   `json:"incoming"`
}

type CertificateErrorNotification struct {
	AccountID string `json:"accountId"`
	Incoming  bool   `json:"incoming"`
}

// ClearNotification retracts previously published notifications of the
// given kind. MessageID narrows the retraction to a single message.
type ClearNotification struct {
	AccountID string `json:"accountId"`
	Kind      string `json:"kind"`
	FolderID  string `json:"folderId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Incoming  bool   `json:"incoming,omitempty"`
}
