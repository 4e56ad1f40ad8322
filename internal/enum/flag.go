package enum

type Flag string

const (
	FlagSeen              Flag = "seen"
	FlagFlagged           Flag = "flagged"
	FlagAnswered          Flag = "answered"
	FlagForwarded         Flag = "forwarded"
	FlagDeleted           Flag = "deleted"
	FlagDraft             Flag = "draft"
	FlagSendInProgress    Flag = "send_in_progress"
	FlagSendFailed        Flag = "send_failed"
	FlagRemoteCopyStarted Flag = "remote_copy_started"
)

func (f Flag) String() string {
	return string(f)
}

// SyncFlags is the subset exchanged with the backend during ordinary sync.
// Everything else is local bookkeeping.
var SyncFlags = []Flag{FlagSeen, FlagFlagged, FlagAnswered, FlagForwarded}

func IsSyncFlag(flag Flag) bool {
	for _, f := range SyncFlags {
		if f == flag {
			return true
		}
	}
	return false
}
