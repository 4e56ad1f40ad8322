package enum

// SyncStatus is the lifecycle state of one (account, folder) sync attempt.
type SyncStatus string

const (
	SyncNotStarted SyncStatus = "not_started"
	SyncStarted    SyncStatus = "started"
	SyncFinished   SyncStatus = "finished"
	SyncFailed     SyncStatus = "failed"
)

func (s SyncStatus) String() string {
	return string(s)
}

type AuthType string

const (
	AuthPlain   AuthType = "plain"
	AuthXOAuth2 AuthType = "xoauth2"
)

func (a AuthType) String() string {
	return string(a)
}

type MoveOrCopyFlavor string

const (
	FlavorMove              MoveOrCopyFlavor = "move"
	FlavorCopy              MoveOrCopyFlavor = "copy"
	FlavorMoveAndMarkAsRead MoveOrCopyFlavor = "move_and_mark_as_read"
)
